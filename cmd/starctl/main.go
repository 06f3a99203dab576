package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/starnotary/internal/sigverify"
	"github.com/jmerrifield20/starnotary/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	notaryURL string
	network   string
	cfgFile   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "starctl",
	Short: "Star notary CLI",
	Long: `starctl talks to a star notary server and manages the Bitcoin keys
used to prove address ownership.

Register a star in one step:

  starctl keygen
  starctl notarize --wif <WIF> --ra "16h 29m 1.0s" --dec "-26° 29' 24.9" --story "Found star"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.starctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("starctl")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if notaryURL == "" {
			notaryURL = viper.GetString("notary_url")
		}
		if notaryURL == "" {
			notaryURL = "http://localhost:8000"
		}
		if network == "" {
			network = viper.GetString("network")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.starctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&notaryURL, "notary", "", "notary base URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "bitcoin network: mainnet, testnet, regtest or signet (default mainnet)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the starctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "starctl", version)
	},
}

func chainParams() (*chaincfg.Params, error) {
	return sigverify.ParamsForNetwork(network)
}

func newClient() (*client.Client, error) {
	return client.New(notaryURL, client.WithUserAgent("starctl/"+version))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
