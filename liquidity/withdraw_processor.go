package liquidity

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/starknuts/starknuts/cashu"
)

// WithdrawOrder is one melt ready to be handed to a Withdrawer.
type WithdrawOrder struct {
	QuoteId string
	Request Request
	Amount  cashu.Amount
	Expiry  int64
	Result  chan<- WithdrawResult
}

type WithdrawResult struct {
	State       cashu.QuoteState
	TransferIds []string
	Err         error
}

// WithdrawProcessor takes orders one at a time off a channel buffered to
// 256 orders (Submit blocks while it is full) and submits each to a
// Withdrawer, retrying a failed submission with exponential backoff from
// 500ms up to a 45s cap — mirroring the substreams consumer's retry
// policy the backpressure section (§5) requires this component to
// follow. Orders are not batched or coalesced.
type WithdrawProcessor struct {
	withdrawer Withdrawer
	orders     chan WithdrawOrder
	logger     *slog.Logger
}

func NewWithdrawProcessor(w Withdrawer, logger *slog.Logger) *WithdrawProcessor {
	return &WithdrawProcessor{
		withdrawer: w,
		orders:     make(chan WithdrawOrder, 256),
		logger:     logger,
	}
}

func (p *WithdrawProcessor) Submit(order WithdrawOrder) {
	p.orders <- order
}

// Run processes the order channel until ctx is cancelled. On
// cancellation the order in flight ends its retry with ctx's error, and
// every order still buffered is answered with ctx's error without being
// submitted. Submit does not refuse orders once Run has returned.
func (p *WithdrawProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case order, ok := <-p.orders:
					if !ok {
						return
					}
					if order.Result != nil {
						order.Result <- WithdrawResult{Err: ctx.Err()}
					}
				default:
					return
				}
			}
		case order, ok := <-p.orders:
			if !ok {
				return
			}
			p.process(ctx, order)
		}
	}
}

func (p *WithdrawProcessor) process(ctx context.Context, order WithdrawOrder) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 45 * time.Second
	b.MaxElapsedTime = 0 // retry until context cancellation

	var state cashu.QuoteState
	var transferIds []string

	err := backoff.Retry(func() error {
		var err error
		state, transferIds, err = p.withdrawer.ProceedToPayment(ctx, order.QuoteId, order.Request, order.Amount, order.Expiry)
		if err != nil {
			p.logger.Warn("withdraw submission failed, retrying", "quote_id", order.QuoteId, "error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))

	if order.Result != nil {
		order.Result <- WithdrawResult{State: state, TransferIds: transferIds, Err: err}
	}
}
