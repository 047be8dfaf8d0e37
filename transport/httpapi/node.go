package httpapi

import "github.com/starknuts/starknuts/node"

// NewForNode is the usual constructor: bind a real *node.Node, which
// already implements nodeService method-for-method.
func NewForNode(addr string, n *node.Node, name, description, version string) *Server {
	return New(addr, n, name, description, version)
}
