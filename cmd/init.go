package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// schemaInitializer is satisfied by stores that manage their own DDL.
type schemaInitializer interface {
	InitSchema(ctx context.Context) error
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			initializer, ok := a.Store.(schemaInitializer)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "store needs no schema, nothing to do")
				return nil
			}
			if err := initializer.InitSchema(cmd.Context()); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema created")
			return nil
		},
	}
}
