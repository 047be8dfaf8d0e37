// Command starknuts-node boots the mint side of the rail: a sqlite-backed
// Node behind transport/httpapi, grounded on the teacher's cmd/mint/mint.go
// env-driven bootstrap and signal-handled shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"github.com/tyler-smith/go-bip39"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/node/storage/sqlite"
	"github.com/starknuts/starknuts/signer"
	"github.com/starknuts/starknuts/transport/httpapi"
)

type nodeConfig struct {
	Addr         string
	DBPath       string
	Name         string
	Desc         string
	Version      string
	MeltFeePpk   cashu.Amount
	MaxOrder     int
	RotatePeriod time.Duration
}

func configFromEnv() (nodeConfig, error) {
	cfg := nodeConfig{
		Name:         envOr("NODE_NAME", "starknuts"),
		Desc:         envOr("NODE_DESCRIPTION", "a Cashu-style mint settling over Starknet"),
		Version:      envOr("NODE_VERSION", "0.1.0"),
		MeltFeePpk:   1,
		MaxOrder:     6,
		RotatePeriod: 7 * 24 * time.Hour,
	}

	port, err := strconv.Atoi(envOr("NODE_PORT", "3338"))
	if err != nil {
		return nodeConfig{}, fmt.Errorf("invalid NODE_PORT: %v", err)
	}
	cfg.Addr = "0.0.0.0:" + strconv.Itoa(port)

	dbPath := os.Getenv("NODE_DB_PATH")
	if dbPath == "" {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return nodeConfig{}, err
		}
		dbPath = filepath.Join(homedir, ".starknuts", "node")
	}
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nodeConfig{}, err
	}
	cfg.DBPath = dbPath

	if feeEnv, ok := os.LookupEnv("MELT_FEE"); ok {
		fee, err := strconv.ParseUint(feeEnv, 10, 64)
		if err != nil {
			return nodeConfig{}, fmt.Errorf("invalid MELT_FEE: %v", err)
		}
		cfg.MeltFeePpk = cashu.Amount(fee)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// boundsFromEnv reads an optional (min, max) amount window, mirroring
// the teacher's MINTING_MAX_AMOUNT/MELTING_MAX_AMOUNT env pair; either
// side left unset stays unbounded.
func boundsFromEnv(minKey, maxKey string) (node.Bounds, error) {
	var b node.Bounds
	if v, ok := os.LookupEnv(minKey); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return node.Bounds{}, fmt.Errorf("invalid %s: %v", minKey, err)
		}
		b.Min = cashu.Amount(n)
	}
	if v, ok := os.LookupEnv(maxKey); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return node.Bounds{}, fmt.Errorf("invalid %s: %v", maxKey, err)
		}
		b.Max = cashu.Amount(n)
	}
	return b, nil
}

func logLevelFromEnv() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadOrCreateMaster returns the node's BIP-32 master key. On first boot
// it generates a fresh 12-word mnemonic and persists the BIP-39 seed
// derived from it (§4.11's seed material, shared with the wallet side);
// the mnemonic itself is only logged, not stored.
func loadOrCreateMaster(ctx context.Context, store *sqlite.SQLiteDB) (*hdkeychain.ExtendedKey, error) {
	seed, err := store.GetSeed(ctx)
	if err == nil && len(seed) > 0 {
		return hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	}

	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	seed = bip39.NewSeed(mnemonic, "")
	if err := store.SaveSeed(ctx, seed); err != nil {
		return nil, err
	}
	log.Printf("generated a fresh node seed; mnemonic (write this down): %s", mnemonic)
	return hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := configFromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := sqlite.InitSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("error opening node db: %v", err)
	}

	master, err := loadOrCreateMaster(ctx, store)
	if err != nil {
		log.Fatalf("error deriving master key: %v", err)
	}

	logger, err := node.NewLogger(os.Getenv("LOG_PATH"), logLevelFromEnv())
	if err != nil {
		log.Fatalf("error setting up logger: %v", err)
	}

	s := signer.NewLocalSigner(master)

	registry := node.NewLiquidityRegistry()
	registry.Register(liquidity.NewMock(cashu.Starknet, cashu.MilliStrk))

	mintBounds, err := boundsFromEnv("MINTING_MIN_AMOUNT", "MINTING_MAX_AMOUNT")
	if err != nil {
		log.Fatalf("invalid minting bounds: %v", err)
	}
	meltBounds, err := boundsFromEnv("MELTING_MIN_AMOUNT", "MELTING_MAX_AMOUNT")
	if err != nil {
		log.Fatalf("invalid melting bounds: %v", err)
	}

	settings := node.NewSettings()
	if strings.ToLower(os.Getenv("MINT_DISABLED")) == "true" {
		settings.SetMintDisabled(true)
	}
	if strings.ToLower(os.Getenv("MELT_DISABLED")) == "true" {
		settings.SetMeltDisabled(true)
	}
	settings.SetMintBounds(cashu.Starknet, cashu.MilliStrk, mintBounds)
	settings.SetMeltBounds(cashu.Starknet, cashu.MilliStrk, meltBounds)

	n, err := node.New(ctx, node.Config{
		Signer:   s,
		Store:    store,
		Registry: registry,
		Settings: settings,
		Logger:   logger,
		MeltFee:  cfg.MeltFeePpk,
	})
	if err != nil {
		log.Fatalf("error constructing node: %v", err)
	}
	if err := n.Keysets().InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, cfg.MaxOrder); err != nil {
		log.Fatalf("error initializing keysets: %v", err)
	}

	rotateCtx, cancelRotate := context.WithCancel(ctx)
	go n.RunRotationLoop(rotateCtx, cfg.RotatePeriod)

	server := httpapi.NewForNode(cfg.Addr, n, cfg.Name, cfg.Desc, cfg.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigCh
		cancelRotate()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
		if err := n.Close(); err != nil {
			log.Printf("error closing node: %v", err)
		}
	}()

	log.Printf("starknuts-node listening on %s (db=%s)", cfg.Addr, cfg.DBPath)
	if err := server.Start(); err != nil {
		log.Fatalf("error running node server: %v", err)
	}
}
