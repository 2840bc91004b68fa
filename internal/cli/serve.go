package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gsarma/codemate/internal/api"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and the toolchain worker pool.

In "all" mode the hardware meter and speech alerts are attached when enabled;
"api" mode only logs alerts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, a.cfg, a.logger, a.cfg.Server.Mode == "all")
	if err != nil {
		return err
	}
	defer comps.Close()

	if a.cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := api.NewHandler(comps.orchestrator, comps.meter, comps.mode, a.logger)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(h, a.cfg.Server, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The pool outlives the listener so requests draining during shutdown
	// can still compile.
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		comps.pool.Start(poolCtx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", srv.Addr), zap.String("mode", a.cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer cancelPool()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
