package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte4ever/shadowsync/shadow/config"
	"github.com/byte4ever/shadowsync/shadow/engine"
	"github.com/byte4ever/shadowsync/shadow/git"
	"github.com/byte4ever/shadowsync/shadow/git/bitbucket"
	"github.com/byte4ever/shadowsync/shadow/git/github"
	"github.com/byte4ever/shadowsync/shadow/git/gitlab"
	"github.com/byte4ever/shadowsync/shadow/metrics"
	"github.com/byte4ever/shadowsync/shadow/webhook"
	"github.com/byte4ever/shadowsync/shadow/workspace"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String(
		keyAddress, "localhost:3000",
		"Address the webhook server listens on",
	)
	cmd.Flags().Int64(
		keyMaxConcurrent, webhook.DefaultMaxConcurrent,
		"Maximum number of sync passes running at once",
	)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		slog.Error("cannot bind serve flags", "error", err)
	}

	// Historical variable names stay accepted.
	if err := v.BindEnv(
		keySecret, envPrefix+"_WEBHOOK_SECRET", "WEBHOOK_SECRET",
	); err != nil {
		slog.Error("cannot bind secret env", "error", err)
	}

	if err := v.BindEnv(
		keyToken, envPrefix+"_TOKEN", "PERSONAL_ACCESS_TOKEN",
	); err != nil {
		slog.Error("cannot bind token env", "error", err)
	}

	return cmd
}

//nolint:funlen // server wiring is inherently long
func runServe(ctx context.Context, v *viper.Viper) error {
	const errCtx = "running webhook server"

	cfg, err := config.Load(v.GetString(keyConfig))
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	token := v.GetString(keyToken)

	provider, err := newProvider(cfg, token)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)

	workspaces := workspace.NewManager(cfg.Settings.WorkspaceRoot)

	eng, err := engine.New(engine.Config{
		Policy:        cfg.Policy,
		Shadows:       cfg.Settings.Shadows,
		Provider:      provider,
		Credentials:   git.StaticToken{Token: token},
		Workspaces:    workspaces,
		GitBaseURL:    cfg.Settings.GitBaseURL,
		CrossForkHead: cfg.CrossFork(),
		BodyTemplate:  cfg.Settings.PullRequestBody,
		TargetTimeout: cfg.TargetTimeout,
		Metrics:       metrics.NewRecorder(reg),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx, stop := signal.NotifyContext(
		ctx, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// Passes outlive the request that triggered them
	// and stop only at shutdown.
	passCtx, cancelPasses := context.WithCancel(
		context.WithoutCancel(ctx),
	)
	defer cancelPasses()

	handler, err := webhook.NewHandler(passCtx, webhook.HandlerConfig{
		Secret:        []byte(v.GetString(keySecret)),
		Dispatch:      webhook.NewDispatch(cfg.Settings.Features, eng),
		MaxConcurrent: v.GetInt64(keyMaxConcurrent),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if cfg.WorkspaceMaxIdle > 0 {
		go evictLoop(ctx, workspaces, cfg.WorkspaceMaxIdle)
	}

	address := v.GetString(keyAddress)
	server := &http.Server{
		Addr:              address,
		Handler:           webhook.NewRouter(handler, reg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		slog.Info(
			"webhook server listening",
			"address", address,
			"path", webhook.Path,
			"shadows", cfg.Settings.Shadows,
		)

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	cancelPasses()
	handler.Wait()

	slog.Info("shutdown complete")

	return nil
}

// newProvider builds the pull request provider named in
// cfg.
func newProvider(
	cfg *config.Config,
	token string,
) (git.GitProvider, error) {
	switch cfg.Settings.Provider {
	case config.ProviderBitbucket:
		return bitbucket.NewProvider(bitbucket.Config{
			BaseURL: cfg.Settings.APIURL,
			Token:   token,
		})
	case config.ProviderGitLab:
		return gitlab.NewProvider(gitlab.Config{
			Host:        cfg.Settings.APIURL,
			AccessToken: token,
		})
	default:
		return github.NewProvider(github.Config{
			APIURL:      cfg.Settings.APIURL,
			AccessToken: token,
		})
	}
}

// evictLoop removes idle workspaces every maxIdle/2
// until ctx is done.
func evictLoop(
	ctx context.Context,
	m *workspace.Manager,
	maxIdle time.Duration,
) {
	ticker := time.NewTicker(max(maxIdle/2, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.Evict(ctx, maxIdle)
			if err != nil {
				slog.Warn("workspace eviction failed", "error", err)
			}

			if len(removed) > 0 {
				slog.Info(
					"evicted idle workspaces",
					"count", len(removed),
				)
			}
		}
	}
}
