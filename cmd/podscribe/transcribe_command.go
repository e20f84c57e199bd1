package main

import (
	"github.com/spf13/cobra"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.service.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
