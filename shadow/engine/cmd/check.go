package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte4ever/shadowsync/shadow/config"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check [repo...]",
		Short: "Validate the configuration and show filter decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString(keyConfig))
			if err != nil {
				return err
			}

			return runCheck(cmd, cfg, args)
		},
	}
}

func runCheck(
	cmd *cobra.Command,
	cfg *config.Config,
	repos []string,
) error {
	out := cmd.OutOrStdout()
	s := cfg.Settings

	fmt.Fprintf(out, "provider: %s\n", s.Provider)
	fmt.Fprintf(out, "git base url: %s\n", s.GitBaseURL)
	fmt.Fprintf(out, "sync pull requests: %t\n", s.Features.SyncPullRequests)
	fmt.Fprintf(out, "sync pushes: %t\n", s.Features.SyncPushes)
	fmt.Fprintf(out, "shadows: %v\n", s.Shadows)
	fmt.Fprintf(out, "whitelist: %v\n", cfg.Policy.Whitelist())
	fmt.Fprintf(out, "exceptions: %v\n", cfg.Policy.Exceptions())

	for _, repo := range repos {
		dec := cfg.Policy.Allows(repo)
		if dec.Allowed {
			fmt.Fprintf(out, "%s: allowed\n", repo)

			continue
		}

		fmt.Fprintf(out, "%s: ignored by %s", repo, dec.Reason)

		if dec.Pattern != "" {
			fmt.Fprintf(out, " (%s)", dec.Pattern)
		}

		fmt.Fprintln(out)
	}

	return nil
}
