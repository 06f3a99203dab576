package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/starnotary/internal/sigverify"
)

// ── keygen ───────────────────────────────────────────────────────────────────

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Bitcoin key pair for signing challenges",
	Long: `keygen creates a new secp256k1 key and prints its WIF private key and
P2PKH address. Keep the WIF secret; anyone holding it can register stars
for the address.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := chainParams()
		if err != nil {
			return err
		}
		_, wif, address, err := sigverify.NewKey(params)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"address": address,
			"wif":     wif,
			"network": params.Name,
		})
	},
}

// ── sign ─────────────────────────────────────────────────────────────────────

var (
	signWIF     string
	signMessage string
)

var signCmd = &cobra.Command{
	Use:   "sign --wif <WIF> --message <text>",
	Short: "Sign a message with a WIF private key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, compressed, err := sigverify.ParseWIF(signWIF)
		if err != nil {
			return err
		}
		sig, err := sigverify.SignMessage(key, signMessage, compressed)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sig)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signWIF, "wif", "", "WIF-encoded private key")
	signCmd.Flags().StringVar(&signMessage, "message", "", "message to sign")
	_ = signCmd.MarkFlagRequired("wif")
	_ = signCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
}
