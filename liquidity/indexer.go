package liquidity

import "context"

// IndexerCursor marks how far the node has consumed the on-chain event
// stream, persisted so a restart resumes instead of reprocessing,
// supplementing the spec's substreams_cursor/substreams_block tables
// (§6.5) which name the storage shape but not the consumer contract.
type IndexerCursor struct {
	Module  string
	Cursor  string
	BlockId uint64
}

// PaymentEventSource is the indexer's side of the boundary: a concrete
// integration (e.g. a Starknet substreams sink) implements this and the
// node's background observation loop drains it.
type PaymentEventSource interface {
	Events(ctx context.Context, after IndexerCursor) (<-chan PaymentEvent, <-chan IndexerCursor, error)
}
