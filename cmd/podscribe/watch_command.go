package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podscribe/internal/logging"
	"podscribe/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Transcribe recordings as they appear in a drop folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if strings.TrimSpace(dir) == "" {
				return errors.New("no directory to watch: pass one or set watch.dir")
			}

			s, err := ctx.openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			handler := func(runCtx context.Context, path string) error {
				result, err := s.service.Run(runCtx, path)
				if err != nil {
					return err
				}
				printResult(out, result)
				return nil
			}
			w, err := watch.New(watch.Options{
				Dir:         dir,
				SettleDelay: s.cfg.Watch.Settle(),
				Extensions:  s.cfg.Watch.Extensions,
			}, handler, s.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)
			s.logger.Info("watch started", logging.String("dir", dir))
			return w.Run(cmd.Context())
		},
	}
	flags.register(cmd)
	return cmd
}
