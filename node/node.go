// Package node implements the mint side of the protocol: the quote
// engine (mint-quote and melt-quote state machines), the proof engine
// (swap/mint/melt verification against the spent-proof set), keyset
// lifecycle, and the response cache that makes the three mutating
// routes idempotent. It speaks to a Signer, a NodeDB and a set of
// LiquiditySource backends purely through their interfaces, mirroring
// the teacher's Mint struct in mint/mint.go.
package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"
	"github.com/starknuts/starknuts/signer"
)

const (
	maxRequestItems     = 64
	defaultMintTTL      = 15 * time.Minute
	defaultCacheSize    = 1000
	defaultCacheTTL     = time.Hour
	defaultRotatePeriod = 7 * 24 * time.Hour
)

// Node bundles the collaborators a running mint needs. It owns no
// process-level concerns (listening sockets, CLI parsing) — those live
// in transport/httpapi and cmd/starknuts-node.
type Node struct {
	logger   *slog.Logger
	signer   signer.Signer
	store    storage.NodeDB
	keysets  *keyset.Manager
	cache    *cache.Cache
	registry *LiquidityRegistry
	settings *Settings

	mintTTL time.Duration
	meltFee cashu.Amount

	withdrawMu sync.Mutex
	withdraw   map[UnitMethodKey]*liquidity.WithdrawProcessor

	ctx    context.Context
	cancel context.CancelFunc
}

// Config collects the Node's dependencies. Zero-value fields fall back
// to the defaults the teacher's mint.go uses.
type Config struct {
	Signer   signer.Signer
	Store    storage.NodeDB
	Registry *LiquidityRegistry
	Settings *Settings
	Logger   *slog.Logger

	MintTTL           time.Duration
	ResponseCacheSize int
	ResponseCacheTTL  time.Duration

	// MeltFee is the flat fee charged on every melt quote, in the
	// quote's unit. The spec leaves the fee policy implementation
	// defined (§9); this module charges a flat minimum fee of one
	// smallest unit, recorded as an Open Question decision in
	// DESIGN.md.
	MeltFee cashu.Amount
}

// New constructs a Node and hydrates its keyset cache from storage. The
// returned Node owns a background context used by its withdraw
// processors; call Close to stop them. RunRotationLoop runs on the
// context its caller passes and is not stopped by Close.
func New(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MintTTL == 0 {
		cfg.MintTTL = defaultMintTTL
	}
	if cfg.ResponseCacheSize == 0 {
		cfg.ResponseCacheSize = defaultCacheSize
	}
	if cfg.ResponseCacheTTL == 0 {
		cfg.ResponseCacheTTL = defaultCacheTTL
	}
	if cfg.Registry == nil {
		cfg.Registry = NewLiquidityRegistry()
	}
	if cfg.Settings == nil {
		cfg.Settings = NewSettings()
	}
	if cfg.MeltFee == 0 {
		cfg.MeltFee = 1
	}

	km := keyset.NewManager(cfg.Signer, cfg.Store)
	if err := km.LoadFromStore(ctx); err != nil {
		return nil, err
	}

	bgCtx, cancel := context.WithCancel(context.Background())

	n := &Node{
		logger:   cfg.Logger,
		signer:   cfg.Signer,
		store:    cfg.Store,
		keysets:  km,
		cache:    cache.New(cfg.ResponseCacheSize, cfg.ResponseCacheTTL),
		registry: cfg.Registry,
		settings: cfg.Settings,
		mintTTL:  cfg.MintTTL,
		meltFee:  cfg.MeltFee,
		withdraw: make(map[UnitMethodKey]*liquidity.WithdrawProcessor),
		ctx:      bgCtx,
		cancel:   cancel,
	}
	return n, nil
}

// Keysets exposes the keyset manager for administrative callers (e.g.
// a keys/keysets HTTP handler, or a rotation CLI command).
func (n *Node) Keysets() *keyset.Manager { return n.keysets }

// Settings exposes the NUT settings for administrative callers.
func (n *Node) Settings() *Settings { return n.settings }

// RunRotationLoop periodically rotates every active keyset, supplementing
// the spec with the periodic automation original_source's
// crates/bin/node/src/keyset_rotation.rs drives; it stops when ctx is
// cancelled.
func (n *Node) RunRotationLoop(ctx context.Context, period time.Duration) {
	if period == 0 {
		period = defaultRotatePeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.keysets.Rotate(ctx); err != nil {
				n.logErrorf("keyset rotation failed: %v", err)
			}
		}
	}
}

// processorFor lazily starts one WithdrawProcessor per (method, unit)
// backend the registry knows about, each draining its own buffered
// order channel with the backoff retry policy of §5's backpressure note.
func (n *Node) processorFor(src liquidity.LiquiditySource) *liquidity.WithdrawProcessor {
	key := UnitMethodKey{Method: src.Method(), Unit: src.Unit()}

	n.withdrawMu.Lock()
	defer n.withdrawMu.Unlock()

	if p, ok := n.withdraw[key]; ok {
		return p
	}
	p := liquidity.NewWithdrawProcessor(src, n.logger)
	n.withdraw[key] = p
	go p.Run(n.ctx)
	return p
}

// Close stops every background withdraw processor started from this
// Node's internal context and closes the store.
func (n *Node) Close() error {
	n.cancel()
	return n.store.Close()
}
