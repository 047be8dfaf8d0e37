package node

import "github.com/starknuts/starknuts/cashu"

// Info is the GetNodeInfo node operation's response payload: static
// deployment metadata plus the currently supported (method, unit)
// pairs, derived live from the liquidity registry so it never drifts
// from what the node can actually service.
type Info struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Version     string                  `json:"version"`
	Methods     []MethodUnitDescription `json:"methods"`
}

type MethodUnitDescription struct {
	Method cashu.Method `json:"method"`
	Unit   cashu.Unit   `json:"unit"`
}

// GetNodeInfo implements the GetNodeInfo node operation.
func (n *Node) GetNodeInfo(name, description, version string) Info {
	var methods []MethodUnitDescription
	for _, src := range n.registry.All() {
		methods = append(methods, MethodUnitDescription{Method: src.Method(), Unit: src.Unit()})
	}
	return Info{Name: name, Description: description, Version: version, Methods: methods}
}
