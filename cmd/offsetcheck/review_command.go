package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/api"
	"github.com/heimdex/offsetcheck/internal/config"
	"github.com/heimdex/offsetcheck/internal/db"
	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/journal"
	"github.com/heimdex/offsetcheck/internal/logging"
	"github.com/heimdex/offsetcheck/internal/review"
	"github.com/heimdex/offsetcheck/internal/sampler"
)

const shutdownTimeout = 5 * time.Second

func newReviewCommand(ctx *commandContext, overrides *config.Overrides) *cobra.Command {
	var once bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:     "review",
		Aliases: []string{"next"},
		Short:   "Review the next undecided transcripts in the browser",
		Long: "Scans the transcript directory, picks the first eligible transcript without a decision,\n" +
			"extracts frames around its target annotations and serves them on the review page until\n" +
			"a decision is recorded. Repeats until every eligible transcript is decided, or once with --once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			decisionWait := cfg.DecisionWait()
			if cmd.Flags().Changed("wait") {
				if wait < 0 {
					return errors.New("--wait must not be negative")
				}
				decisionWait = wait
			}
			policy, err := sampler.ParsePolicy(cfg.Review.Policy)
			if err != nil {
				return err
			}

			logger := ctx.log(cmd)
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := ffmpeg.NewRunner(ffmpeg.Config{
				Binary:  cfg.FFmpeg.Binary,
				Timeout: cfg.FFmpegTimeout(),
				Logger:  logging.WithComponent(logger, "ffmpeg"),
			})
			if err != nil {
				return fmt.Errorf("%w (run `offsetcheck doctor` for details)", err)
			}

			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}

			logSink := events.NewLogSink(logging.WithComponent(logger, "events"))
			var jsink *journal.Sink
			var sessions review.SessionRecorder

			database, err := db.New(cfg.JournalPath(), logger)
			if err != nil {
				logger.Warn("journal unavailable, sessions will not be recorded", "error", err)
			} else {
				defer database.Close()
				repo := journal.NewRepository(database.Conn())
				jsink = journal.NewSink(repo, logger)
				sessions = repo
			}
			sinks := newReviewSinks(logSink, jsink)

			notifier := ctx.newNotifier(cmd)
			server := api.NewServer(api.ServerConfig{
				Bind:     cfg.Server.Bind,
				Ledger:   l,
				Notifier: notifier,
				Doctor:   ffmpeg.NewCachedDoctor(runner, logger),
				Logger:   logging.WithComponent(logger, "api"),
				Version:  config.Version,
			})

			driver, err := review.New(review.Config{
				EAFDir:       cfg.Paths.EAFDir,
				TargetLabel:  cfg.Review.TargetLabel,
				Policy:       policy,
				DecisionWait: decisionWait,
			}, review.Deps{
				Scanner: ctx.newFilter(cmd, sinks.scan),
				Locator: ctx.newLocator(cmd),
				NewExtractor: func(workDir string) sampler.Extractor {
					return ffmpeg.NewExtractor(runner, workDir)
				},
				Ledger:      l,
				Presenter:   server,
				Notifier:    notifier,
				Sessions:    sessions,
				Sink:        sinks.scan,
				SessionSink: sinks.session,
				Logger:      logging.WithComponent(logger, "review"),
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Server.Bind)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.Bind, err)
			}
			serveErr := make(chan error, 1)
			go func() { serveErr <- server.Serve(ln) }()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Review page: http://%s/\n", ln.Addr().String())

			for {
				select {
				case err := <-serveErr:
					return fmt.Errorf("http server: %w", err)
				default:
				}

				outcome, err := driver.Next(runCtx)
				if err != nil {
					if runCtx.Err() != nil {
						fmt.Fprintln(out, "Interrupted; the current transcript stays undecided.")
						return nil
					}
					return err
				}
				if outcome.NothingToDo {
					fmt.Fprintf(out, "All %d eligible transcripts have a decision.\n", outcome.Eligible)
					return nil
				}
				printOutcome(cmd, outcome)
				// a timed-out transcript is still first in line
				if once || outcome.TimedOut {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Review a single transcript and exit")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Give up on a transcript after this long without a decision (0 waits indefinitely)")
	cmd.Flags().StringVar(&overrides.Policy, "policy", "", "Sampling policy (midpoint, four_point)")
	cmd.Flags().StringVar(&overrides.Bind, "bind", "", "Review page listen address")
	return cmd
}

func printOutcome(cmd *cobra.Command, o review.Outcome) {
	out := cmd.OutOrStdout()
	switch {
	case o.TimedOut:
		fmt.Fprintf(out, "%s: no decision in time (%d/%d frames); rerun to review it again\n", o.Filename, o.Extracted, o.Attempted)
	case o.Record != nil:
		fmt.Fprintf(out, "%s: %s (%d/%d frames, %d left)\n", o.Filename, o.Record.Decision, o.Extracted, o.Attempted, o.Remaining-1)
	default:
		fmt.Fprintf(out, "%s: finished without a decision\n", o.Filename)
	}
}

// reviewSinks routes events during `review`. Scan skips repeat on every pass
// over the corpus, so they are only logged; session events are logged and
// journaled once, tagged with their session id.
type reviewSinks struct {
	scan    events.Sink
	session func(sessionID string) events.Sink
}

func newReviewSinks(logSink events.Sink, jsink *journal.Sink) reviewSinks {
	sinks := reviewSinks{
		scan:    logSink,
		session: func(string) events.Sink { return logSink },
	}
	if jsink != nil {
		sinks.session = func(id string) events.Sink {
			return events.Multi(logSink, jsink.ForSession(id))
		}
	}
	return sinks
}
