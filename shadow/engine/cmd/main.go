// Command shadowsync receives GitHub webhooks and
// replicates pull requests and pushes of the source
// organization into its shadow organizations.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SHADOWSYNC"

// Flag and viper keys.
const (
	keyConfig        = "config"
	keyAddress       = "address"
	keyLogLevel      = "log-level"
	keyMaxConcurrent = "max-concurrent"
	keySecret        = "webhook-secret"
	keyToken         = "token"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "shadowsync",
		Short:         "Mirror a GitHub organization into shadow organizations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(v.GetString(keyLogLevel))
		},
	}

	root.PersistentFlags().String(
		keyConfig, "config.json",
		"Configuration file (JSON, or YAML by extension)",
	)
	root.PersistentFlags().String(
		keyLogLevel, "info",
		"Log level: debug, info, warn or error",
	)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(root.PersistentFlags()); err != nil {
		slog.Error("cannot bind flags", "error", err)
	}

	root.AddCommand(newServeCmd(v), newCheckCmd(v))

	return root
}

// setupLogging installs a JSON slog handler at level.
func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(
		os.Stderr, &slog.HandlerOptions{Level: lvl},
	)))

	return nil
}
