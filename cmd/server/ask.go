package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

func newAskCmd(v *viper.Viper) *cobra.Command {
	var (
		userID        int64
		personalityID int64
		clearFirst    bool
	)
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt as a user and print the reply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !clearFirst && len(args) == 0 {
				return fmt.Errorf("a prompt is required unless --clear is set")
			}
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, a.Close()) }()

			if clearFirst {
				if err := a.engine.ClearConversation(cmd.Context(), userID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "conversation cleared")
				if len(args) == 0 {
					return nil
				}
			}

			var pid *int64
			if cmd.Flags().Changed("personality") {
				pid = &personalityID
			}
			reply, err := a.engine.SendPrompt(cmd.Context(), userID, args[0], pid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if reply.HasReaction() {
				fmt.Fprintln(cmd.OutOrStdout(), "reaction:", reply.Reaction)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id to talk as")
	cmd.Flags().Int64Var(&personalityID, "personality", 0, "personality id to answer with")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "clear the conversation first")
	return cmd
}
