// cmd/migrate copies a star ledger from one storage driver to another and
// verifies the copy, e.g. to move a pebble ledger onto postgres.
//
// Usage:
//
//	SOURCE_DRIVER=pebble SOURCE_PATH=chaindata \
//	TARGET_DRIVER=postgres TARGET_DSN=postgres://... go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/ledgerstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func storeConfig(prefix string) ledgerstore.Config {
	return ledgerstore.Config{
		Driver: os.Getenv(prefix + "_DRIVER"),
		Path:   os.Getenv(prefix + "_PATH"),
		DSN:    os.Getenv(prefix + "_DSN"),
	}
}

func run() error {
	srcCfg, dstCfg := storeConfig("SOURCE"), storeConfig("TARGET")
	if srcCfg.Driver == "" || dstCfg.Driver == "" {
		return fmt.Errorf("SOURCE_DRIVER and TARGET_DRIVER must be set")
	}
	if srcCfg.Driver == ledgerstore.DriverMemory || dstCfg.Driver == ledgerstore.DriverMemory {
		return fmt.Errorf("the memory driver cannot be migrated")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	src, err := ledgerstore.Open(ctx, srcCfg, logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	// Refuse to copy a ledger that is already broken.
	srcChain, err := chain.New(ctx, src, logger)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if err := srcChain.Verify(ctx); err != nil {
		return fmt.Errorf("verify source: %w", err)
	}
	fmt.Printf("source verified (%s)\n", srcCfg.Driver)

	dst, err := ledgerstore.Open(ctx, dstCfg, logger)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer dst.Close()

	n, err := ledgerstore.Copy(ctx, dst, src)
	if err != nil {
		return fmt.Errorf("copy after %d blocks: %w", n, err)
	}
	fmt.Printf("  copied %d block(s)\n", n)

	dstChain, err := chain.New(ctx, dst, logger)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if err := dstChain.Verify(ctx); err != nil {
		return fmt.Errorf("verify target: %w", err)
	}
	if tip := dstChain.Tip(); tip != nil {
		fmt.Printf("target verified (%s), tip %d %s\n", dstCfg.Driver, tip.Height, tip.Hash)
	} else {
		fmt.Println("nothing to migrate, source ledger is empty")
	}
	return nil
}
