package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/logging"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg and the configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			probeCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			caps := ffmpeg.Probe(probeCtx, cfg.FFmpeg.Binary)
			ok := caps.Available

			ffmpegDetail := caps.Version
			if !caps.Available {
				ffmpegDetail = caps.Error
			}
			rows := [][]string{{"ffmpeg", yesNo(caps.Available), caps.Binary, ffmpegDetail}}

			for _, d := range []struct{ label, path string }{
				{"transcripts", cfg.Paths.EAFDir},
				{"recordings", cfg.Paths.VideoDir},
				{"data", cfg.Paths.DataDir},
			} {
				detail := ""
				info, err := os.Stat(d.path)
				found := err == nil && info.IsDir()
				switch {
				case err != nil:
					detail = err.Error()
				case !info.IsDir():
					detail = "not a directory"
				}
				if !found {
					ok = false
				}
				rows = append(rows, []string{d.label, yesNo(found), logging.SanitizePath(d.path), detail})
			}

			configPath := "(defaults)"
			if ctx.configPath != "" {
				configPath = logging.SanitizePath(ctx.configPath)
			}
			rows = append(rows, []string{"config", "yes", configPath, ""})
			rows = append(rows, []string{"ledger", "yes", logging.SanitizePath(cfg.LedgerPath()), ""})

			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Check", "OK", "Path", "Detail"}, rows, nil))
			if !ok {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
