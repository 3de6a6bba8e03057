package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/adlint/internal/api"
	"github.com/codewithboateng/adlint/internal/cache"
	"github.com/codewithboateng/adlint/internal/check"
	"github.com/codewithboateng/adlint/internal/metrics"
	"github.com/codewithboateng/adlint/internal/rules"
	"github.com/codewithboateng/adlint/internal/security"
	"github.com/codewithboateng/adlint/internal/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var watchFiles bool
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Server.Watch = watchFiles
			}
			return a.serve(cmd.Context(), origins)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&watchFiles, "watch", false, "reload rules when the database or rule pack changes")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins")
	return cmd
}

func (a *app) serve(ctx context.Context, origins []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, db, err := a.openProvider()
	if err != nil {
		return err
	}
	defer closeDB(db)

	m := metrics.New()
	svc := check.New(p, a.logger)
	svc.Cache = cache.New(a.cfg.Server.CacheTTL, 2*a.cfg.Server.CacheTTL)
	svc.Metrics = m
	observe := func() {
		if rs := p.Ruleset(); rs != nil {
			m.SetRuleset(rs.Version, rs.Len(), p.Mode().String())
		}
	}
	observe()

	srv := &api.Server{
		Rules:          p,
		Checker:        svc,
		Metrics:        m,
		Logger:         a.logger,
		AdminTokenHash: a.cfg.Server.AdminTokenHash,
		AllowedOrigins: origins,
	}
	if db != nil {
		srv.Audit = db
	}
	if a.cfg.Server.RateLimit > 0 {
		srv.Limiter = api.NewLimiter(a.cfg.Server.RateLimit, a.cfg.Server.Burst)
	}
	if srv.AdminTokenHash == "" {
		a.logger.Warn("server.admin_token_hash not set, rule mutations over HTTP are disabled")
	}

	if a.cfg.Server.Watch {
		w, err := a.startWatcher(ctx, p, m, observe)
		if err != nil {
			return err
		}
		if w != nil {
			defer w.Stop()
		}
	}

	hs := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", hs.Addr, "mode", p.Mode().String())
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

func (a *app) startWatcher(ctx context.Context, p *rules.Provider, m *metrics.Metrics, observe func()) (*watch.Watcher, error) {
	var paths []string
	if p.Mode() == rules.ModePersistent {
		paths = append(paths, a.cfg.Database.Path)
	}
	if a.cfg.Rules.Pack != "" && p.Mode() == rules.ModeFallback {
		paths = append(paths, a.cfg.Rules.Pack)
	}
	if len(paths) == 0 {
		a.logger.Warn("watch requested but there is no rule database or pack to watch")
		return nil, nil
	}
	w, err := watch.New(paths, func() error {
		err := p.Reload()
		m.RecordReload(err == nil)
		if err == nil {
			observe()
		}
		return err
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func newTokenCmd() *cobra.Command {
	var hashOnly string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an admin API token and its bcrypt hash",
		Long: `Prints a new random token and the bcrypt hash to put in server.admin_token_hash
(or ADLINT_SERVER_ADMIN_TOKEN_HASH). With --hash, hashes the given token instead.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := hashOnly
			if tok == "" {
				var err error
				if tok, err = security.NewToken(32); err != nil {
					return err
				}
			}
			hash, err := security.HashToken(tok)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if hashOnly == "" {
				fmt.Fprintln(out, "token:", tok)
			}
			fmt.Fprintln(out, "hash: ", hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&hashOnly, "hash", "", "hash this token instead of generating one")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Configuration precedence (highest first):
  1. CLI flags
  2. Environment variables (ADLINT_*, e.g. ADLINT_DATABASE_PATH)
  3. Config file (--config)
  4. Defaults`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cfg.Server.AdminTokenHash != "" {
				cfg.Server.AdminTokenHash = "(set)"
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	return cmd
}
