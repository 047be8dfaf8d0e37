package node

// Acknowledge implements the Acknowledge node operation (§6.1/§4.3): a
// client confirms it has durably received a mint/swap/melt response, so
// the response cache can evict the entry instead of holding it for the
// full TTL.
func (n *Node) Acknowledge(route string, requestHash uint64) {
	n.cache.Acknowledge(route, requestHash)
}
