package node

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"
)

// MeltQuoteRequest is the request shape of the MeltQuote node operation
// (§6.1); the payment request itself is opaque JSON the Withdrawer
// knows how to deserialize.
type MeltQuoteRequest struct {
	Method         cashu.Method    `json:"method"`
	Unit           cashu.Unit      `json:"unit"`
	PaymentRequest json.RawMessage `json:"request"`
}

// InnerMeltQuote implements §4.5's inner_melt_quote: gate on settings,
// deserialize and validate the payment request through the Withdrawer,
// compute the fee, and persist the quote Unpaid.
func (n *Node) InnerMeltQuote(ctx context.Context, req MeltQuoteRequest) (storage.MeltQuote, error) {
	if err := n.settings.checkMeltGate(req.Method, req.Unit); err != nil {
		return storage.MeltQuote{}, err
	}

	src, ok := n.registry.Lookup(req.Method, req.Unit)
	if !ok {
		return storage.MeltQuote{}, cashu.ErrMethodNotSupported
	}

	parsed, err := src.DeserializePaymentRequest(req.PaymentRequest)
	if err != nil {
		return storage.MeltQuote{}, err
	}
	if !req.Unit.IsAssetSupported(parsed.Asset) {
		return storage.MeltQuote{}, cashu.Build("payment request asset is not settled in the requested unit", cashu.LiquidityErrCode)
	}
	if parsed.Payee == "" {
		return storage.MeltQuote{}, cashu.Build("payment request is missing a payee address", cashu.LiquidityErrCode)
	}
	if err := n.settings.checkMelt(req.Method, req.Unit, parsed.Amount); err != nil {
		return storage.MeltQuote{}, err
	}

	fee := n.meltFee
	quoteId := uuid.NewString()
	expiry := time.Now().Add(n.mintTTL).Unix()
	invoiceId := src.ComputeInvoiceId(quoteId, expiry)

	quote := storage.MeltQuote{
		Id:        quoteId,
		Method:    req.Method,
		Unit:      req.Unit,
		Amount:    parsed.Amount,
		Fee:       fee,
		Request:   string(req.PaymentRequest),
		InvoiceId: invoiceId,
		State:     cashu.Unpaid,
		Expiry:    expiry,
	}
	if err := n.store.SaveMeltQuote(ctx, quote); err != nil {
		return storage.MeltQuote{}, err
	}
	n.logInfof("melt quote %s created for %d %s (fee %d)", quoteId, parsed.Amount, req.Unit, fee)
	return quote, nil
}

// GetMeltQuote implements the MeltQuoteState node operation.
func (n *Node) GetMeltQuote(ctx context.Context, quoteId string) (storage.MeltQuote, error) {
	return n.store.GetMeltQuote(ctx, quoteId)
}

// MeltRequest is the request shape of the Melt node operation (§6.1).
type MeltRequest struct {
	Method  cashu.Method `json:"method"`
	QuoteId string       `json:"quote"`
	Inputs  cashu.Proofs `json:"inputs"`
}

// MeltResult is what the client gets back from Melt: the quote's new
// state and any transfer ids the Withdrawer has already produced.
type MeltResult struct {
	State       cashu.QuoteState `json:"state"`
	TransferIds []string         `json:"transfer_ids,omitempty"`
}

// InnerMelt implements §4.5's inner_melt: verify the inputs, require
// their total equal amount+fee, spend them and advance the quote to
// Pending in one step, then hand the payment to the Withdrawer (via its
// WithdrawProcessor, for the retry/backoff discipline of §5).
func (n *Node) InnerMelt(ctx context.Context, req MeltRequest) (MeltResult, error) {
	fp := cache.FingerprintMelt(req.QuoteId, req.Inputs)
	result, _, err := n.cache.Execute("melt", fp, func() (any, error) {
		return n.innerMelt(ctx, req)
	})
	if err != nil {
		return MeltResult{}, err
	}
	return result.(MeltResult), nil
}

func (n *Node) innerMelt(ctx context.Context, req MeltRequest) (MeltResult, error) {
	quote, err := n.store.GetMeltQuote(ctx, req.QuoteId)
	if err != nil {
		return MeltResult{}, err
	}
	if quote.State != cashu.Unpaid {
		return MeltResult{}, cashu.ErrQuoteNotUnpaid
	}
	if time.Now().Unix() > quote.Expiry {
		return MeltResult{}, cashu.ErrQuoteExpired
	}

	verified, err := n.verifyInputs(ctx, req.Inputs)
	if err != nil {
		return MeltResult{}, err
	}
	required, err := quote.Amount.Add(quote.Fee)
	if err != nil {
		return MeltResult{}, err
	}
	if verified.Total != required {
		return MeltResult{}, cashu.ErrInputsSumMismatch
	}

	if err := n.store.SaveProofs(ctx, req.Inputs); err != nil {
		return MeltResult{}, err
	}
	if err := n.store.UpdateMeltQuote(ctx, quote.Id, cashu.Pending, nil); err != nil {
		return MeltResult{}, err
	}

	src, ok := n.registry.Lookup(req.Method, quote.Unit)
	if !ok {
		return MeltResult{}, cashu.ErrMethodNotSupported
	}
	parsed, err := src.DeserializePaymentRequest([]byte(quote.Request))
	if err != nil {
		return MeltResult{}, err
	}

	resultCh := make(chan liquidity.WithdrawResult, 1)
	n.processorFor(src).Submit(liquidity.WithdrawOrder{
		QuoteId: quote.Id,
		Request: parsed,
		Amount:  quote.Amount,
		Expiry:  quote.Expiry,
		Result:  resultCh,
	})

	select {
	case <-ctx.Done():
		return MeltResult{State: cashu.Pending}, nil
	case wr := <-resultCh:
		if wr.Err != nil {
			n.logErrorf("melt quote %s withdraw failed: %v", quote.Id, wr.Err)
			return MeltResult{State: cashu.Pending}, nil
		}
		if err := n.store.UpdateMeltQuote(ctx, quote.Id, wr.State, wr.TransferIds); err != nil {
			return MeltResult{}, err
		}
		n.logInfof("melt quote %s settled state=%s transfers=%v", quote.Id, wr.State, wr.TransferIds)
		return MeltResult{State: wr.State, TransferIds: wr.TransferIds}, nil
	}
}

// ObserveSettlement lets the background settlement loop (driven by the
// same indexer that feeds ObservePayment) confirm a Pending melt quote
// once the indexer reports the withdrawal transaction as final.
func (n *Node) ObserveSettlement(ctx context.Context, quoteId string, transferIds []string) error {
	quote, err := n.store.GetMeltQuote(ctx, quoteId)
	if err != nil {
		return err
	}
	if quote.State != cashu.Pending {
		return nil
	}
	return n.store.UpdateMeltQuote(ctx, quoteId, cashu.Paid, transferIds)
}
