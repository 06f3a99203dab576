package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/ledgerstore"
)

var (
	verifyDriver string
	verifyPath   string
	verifyDSN    string
	verifyRemote bool
)

var verifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Check the hash links of a ledger",
	Long: `verify-ledger walks a ledger and reports the first block whose hash or
previous-hash link does not hold.

With --remote it asks the notary to check its own ledger. Otherwise it opens
the store directly, which should not be done while a notary is writing to it:

  starctl verify-ledger --driver pebble --path ./chaindata
  starctl verify-ledger --driver postgres --dsn postgres://...`,
	Args: cobra.NoArgs,
	RunE: runVerifyLedger,
}

func init() {
	verifyLedgerCmd.Flags().StringVar(&verifyDriver, "driver", ledgerstore.DriverPebble, "ledger driver: pebble, sqlite or postgres")
	verifyLedgerCmd.Flags().StringVar(&verifyPath, "path", "chaindata", "pebble directory or sqlite file")
	verifyLedgerCmd.Flags().StringVar(&verifyDSN, "dsn", "", "postgres connection string")
	verifyLedgerCmd.Flags().BoolVar(&verifyRemote, "remote", false, "ask the notary at --notary instead of opening a store")

	rootCmd.AddCommand(verifyLedgerCmd)
}

func runVerifyLedger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if verifyRemote {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.VerifyChain(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(out, res); err != nil {
			return err
		}
		if !res.Valid {
			return errors.New("ledger is corrupt")
		}
		return nil
	}

	logger := zap.NewNop()
	store, err := ledgerstore.Open(ctx, ledgerstore.Config{Driver: verifyDriver, Path: verifyPath, DSN: verifyDSN}, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close() //nolint:errcheck

	ch, err := chain.New(ctx, store, logger)
	if err != nil {
		return err
	}
	height, ok := ch.Height()
	if !ok {
		fmt.Fprintln(out, "ledger is empty")
		return nil
	}

	err = ch.Verify(ctx)
	var ie *chain.IntegrityError
	switch {
	case err == nil:
		fmt.Fprintf(out, "ledger valid: %d blocks, tip %s\n", height+1, ch.Tip().Hash)
		return nil
	case errors.As(err, &ie):
		fmt.Fprintf(out, "ledger INVALID: %s\n", ie)
		return errors.New("ledger is corrupt")
	default:
		return err
	}
}
