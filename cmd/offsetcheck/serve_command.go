package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/api"
	"github.com/heimdex/offsetcheck/internal/config"
	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/logging"
)

func newServeCommand(ctx *commandContext, overrides *config.Overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run only the decision endpoint",
		Long: "Serves POST /record_decision without driving a review, so decisions made elsewhere\n" +
			"are written to this machine's ledger.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger := ctx.log(cmd)

			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}

			var doctor *ffmpeg.CachedDoctor
			if runner, err := ffmpeg.NewRunner(ffmpeg.Config{Binary: cfg.FFmpeg.Binary, Timeout: cfg.FFmpegTimeout()}); err == nil {
				doctor = ffmpeg.NewCachedDoctor(runner, logger)
			}

			server := api.NewServer(api.ServerConfig{
				Bind:     cfg.Server.Bind,
				Ledger:   l,
				Notifier: ctx.newNotifier(cmd),
				Doctor:   doctor,
				Logger:   logging.WithComponent(logger, "api"),
				Version:  config.Version,
			})

			ln, err := net.Listen("tcp", cfg.Server.Bind)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.Bind, err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.Serve(ln) }()
			fmt.Fprintf(cmd.OutOrStdout(), "Decision endpoint: http://%s/record_decision (ledger %s)\n", ln.Addr().String(), l.Path())

			select {
			case err := <-serveErr:
				return err
			case <-runCtx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&overrides.Bind, "bind", "", "Listen address")
	return cmd
}
