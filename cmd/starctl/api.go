package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/starnotary/internal/sigverify"
	"github.com/jmerrifield20/starnotary/pkg/client"
)

// ── request / validate / register ────────────────────────────────────────────

var requestCmd = &cobra.Command{
	Use:   "request <address>",
	Short: "Request a validation challenge for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ch, err := c.RequestValidation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ch)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <address> <signature>",
	Short: "Submit the signature of a challenge message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.ValidateSignature(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var (
	starRA    string
	starDec   string
	starStory string
)

func addStarFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&starRA, "ra", "", "right ascension, e.g. \"16h 29m 1.0s\"")
	cmd.Flags().StringVar(&starDec, "dec", "", "declination, e.g. \"-26° 29' 24.9\"")
	cmd.Flags().StringVar(&starStory, "story", "", "ASCII story, at most 500 characters")
	_ = cmd.MarkFlagRequired("ra")
	_ = cmd.MarkFlagRequired("dec")
	_ = cmd.MarkFlagRequired("story")
}

var registerCmd = &cobra.Command{
	Use:   "register <address> --ra <ra> --dec <dec> --story <text>",
	Short: "Register a star for an authorized address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := c.RegisterStar(cmd.Context(), args[0], client.Star{RA: starRA, Dec: starDec, Story: starStory})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

// ── notarize ─────────────────────────────────────────────────────────────────

var notarizeWIF string

var notarizeCmd = &cobra.Command{
	Use:   "notarize --wif <WIF> --ra <ra> --dec <dec> --story <text>",
	Short: "Request, sign, validate and register a star in one step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := chainParams()
		if err != nil {
			return err
		}
		key, compressed, err := sigverify.ParseWIF(notarizeWIF)
		if err != nil {
			return err
		}
		address, err := sigverify.AddressForKey(key, compressed, params)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := notarize(cmd.Context(), c, address, func(msg string) (string, error) {
			return sigverify.SignMessage(key, msg, compressed)
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

func notarize(ctx context.Context, c *client.Client, address string, sign func(string) (string, error)) (*client.Block, error) {
	ch, err := c.RequestValidation(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("request validation: %w", err)
	}
	sig, err := sign(ch.Message)
	if err != nil {
		return nil, err
	}
	res, err := c.ValidateSignature(ctx, address, sig)
	if err != nil {
		return nil, fmt.Errorf("validate signature: %w", err)
	}
	if !res.RegisterStar {
		return nil, fmt.Errorf("signature %s, %.0fs left in window", res.Status.MessageSignature, res.Status.ValidationWindow)
	}
	b, err := c.RegisterStar(ctx, address, client.Star{RA: starRA, Dec: starDec, Story: starStory})
	if err != nil {
		return nil, fmt.Errorf("register star: %w", err)
	}
	return b, nil
}

// ── block / stars / chain ────────────────────────────────────────────────────

var blockCmd = &cobra.Command{
	Use:   "block <height>",
	Short: "Show the block at a height",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := c.Block(cmd.Context(), height)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

var starsFormat string

var starsCmd = &cobra.Command{
	Use:   "stars address:<address> | hash:<hash>",
	Short: "Look up stars by owner address or block hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		kind, value, ok := strings.Cut(args[0], ":")
		if !ok || value == "" {
			return errors.New("query must be address:<address> or hash:<hash>")
		}
		var blocks []client.Block
		switch kind {
		case "address":
			blocks, err = c.StarsByAddress(cmd.Context(), value)
		case "hash":
			var b *client.Block
			b, err = c.StarByHash(cmd.Context(), value)
			if b != nil {
				blocks = []client.Block{*b}
			}
		default:
			return fmt.Errorf("unknown query kind %q", kind)
		}
		if err != nil {
			return err
		}
		return printBlocks(cmd, blocks, starsFormat)
	},
}

var chainFormat string

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "List every block on the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		blocks, err := c.Chain(cmd.Context())
		if err != nil {
			return err
		}
		return printBlocks(cmd, blocks, chainFormat)
	},
}

func printBlocks(cmd *cobra.Command, blocks []client.Block, format string) error {
	if format == "json" {
		return printJSON(cmd.OutOrStdout(), blocks)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HEIGHT\tADDRESS\tRA\tDEC\tHASH")
	for _, b := range blocks {
		ra, dec := "-", "-"
		if b.Body.Star != nil {
			ra, dec = b.Body.Star.RA, b.Body.Star.Dec
		}
		addr := b.Body.Address
		if addr == "" {
			addr = "(genesis)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", b.Height, addr, ra, dec, b.Hash)
	}
	return w.Flush()
}

func init() {
	addStarFlags(registerCmd)
	addStarFlags(notarizeCmd)
	notarizeCmd.Flags().StringVar(&notarizeWIF, "wif", "", "WIF-encoded private key of the owning address")
	_ = notarizeCmd.MarkFlagRequired("wif")

	starsCmd.Flags().StringVar(&starsFormat, "format", "text", "Output format: text or json")
	chainCmd.Flags().StringVar(&chainFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(notarizeCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(starsCmd)
	rootCmd.AddCommand(chainCmd)
}
