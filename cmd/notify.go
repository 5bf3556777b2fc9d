package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotifyCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test message through the configured channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Notifier.Announce(cmd.Context(), message); err != nil {
				return fmt.Errorf("send notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "notification sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "jobsentry test notification", "message text")
	return cmd
}
