package node

import (
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/keyset"
)

// KeysetSummary is the Keysets node operation's response element: id,
// unit and active flag, without key material (§6.1).
type KeysetSummary struct {
	Id     cashu.KeysetId `json:"id"`
	Unit   cashu.Unit     `json:"unit"`
	Active bool           `json:"active"`
}

// ListKeysets implements the Keysets node operation.
func (n *Node) ListKeysets() []KeysetSummary {
	infos := n.keysets.Keys(nil)
	out := make([]KeysetSummary, len(infos))
	for i, info := range infos {
		out[i] = KeysetSummary{Id: info.Id, Unit: info.Unit, Active: info.Active}
	}
	return out
}

// ListKeys implements the Keys node operation: the full per-amount key
// material for one keyset, or every keyset when id is nil.
func (n *Node) ListKeys(id *cashu.KeysetId) []keyset.Info {
	return n.keysets.Keys(id)
}
