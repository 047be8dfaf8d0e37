package client

import (
	"context"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/node/storage"
)

// InProcessClient implements NodeClient by calling a *node.Node's Go
// methods directly, skipping the network. Used for same-process wiring
// (a node operator running its own wallet) and for tests that want the
// wallet's real selection/quote-driver code exercised against a real
// node without standing up transport/httpapi.
type InProcessClient struct {
	Node *node.Node
	ctx  context.Context
}

func NewInProcessClient(ctx context.Context, n *node.Node) *InProcessClient {
	return &InProcessClient{Node: n, ctx: ctx}
}

func (c *InProcessClient) GetNodeInfo() (node.Info, error) {
	return c.Node.GetNodeInfo("starknuts", "", ""), nil
}

func (c *InProcessClient) GetKeysets() ([]node.KeysetSummary, error) {
	return c.Node.ListKeysets(), nil
}

func (c *InProcessClient) GetKeys(id *cashu.KeysetId) ([]KeysetKeys, error) {
	infos := c.Node.ListKeys(id)
	out := make([]KeysetKeys, len(infos))
	for i, info := range infos {
		kk := KeysetKeys{Id: info.Id, Unit: info.Unit, Active: info.Active, MaxOrder: info.MaxOrder}
		for amount, pk := range info.Keys {
			kk.Keys = append(kk.Keys, KeyEntry{Amount: amount, Pubkey: cashu.NewPublicKey(pk).Hex()})
		}
		out[i] = kk
	}
	return out, nil
}

func (c *InProcessClient) PostMintQuote(req node.MintQuoteRequest) (storage.MintQuote, error) {
	return c.Node.InnerMintQuote(c.ctx, req)
}

func (c *InProcessClient) GetMintQuoteState(quoteId string) (storage.MintQuote, error) {
	return c.Node.GetMintQuote(c.ctx, quoteId)
}

func (c *InProcessClient) PostMint(req node.MintRequest) (cashu.BlindSignatures, error) {
	return c.Node.InnerMint(c.ctx, req)
}

func (c *InProcessClient) PostMeltQuote(req node.MeltQuoteRequest) (storage.MeltQuote, error) {
	return c.Node.InnerMeltQuote(c.ctx, req)
}

func (c *InProcessClient) GetMeltQuoteState(quoteId string) (storage.MeltQuote, error) {
	return c.Node.GetMeltQuote(c.ctx, quoteId)
}

func (c *InProcessClient) PostMelt(req node.MeltRequest) (node.MeltResult, error) {
	return c.Node.InnerMelt(c.ctx, req)
}

func (c *InProcessClient) PostSwap(req node.SwapRequest) (cashu.BlindSignatures, error) {
	return c.Node.InnerSwap(c.ctx, req)
}

func (c *InProcessClient) PostCheckState(ys []string) ([]node.YState, error) {
	return c.Node.CheckState(c.ctx, ys)
}

func (c *InProcessClient) PostRestore(req node.RestoreRequest) (node.RestoreResponse, error) {
	return c.Node.Restore(c.ctx, req)
}

func (c *InProcessClient) PostAcknowledge(route string, requestHash uint64) error {
	c.Node.Acknowledge(route, requestHash)
	return nil
}
