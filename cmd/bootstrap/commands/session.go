package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the persisted test session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the persisted identity (password omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			id, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			if id == nil {
				_, err = fmt.Fprintln(app.Out, "no active session")
				return err
			}
			_, err = fmt.Fprint(app.Out, id.Summary())
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the persisted identity so the next run creates a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.Out, "session cleared")
			return err
		},
	})
	return cmd
}
