package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipgl/vendor-bootstrap/internal/bootstrap"
)

// ErrSetupFailed is returned when the heavy setup did not reach READY.
var ErrSetupFailed = errors.New("orders setup failed")

type moduleOutput struct {
	Module      string                `json:"module"`
	Credentials bootstrap.Credentials `json:"credentials"`
	Setup       *bootstrap.Result     `json:"setup,omitempty"`
}

func newModuleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "module <name>",
		Short: "Bootstrap credentials for a test module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			creds, res, err := o.PrepareModule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(app, moduleOutput{Module: args[0], Credentials: creds, Setup: res}); err != nil {
				return err
			}
			if res != nil && !res.Success {
				return fmt.Errorf("%w: %v", ErrSetupFailed, res.Errors)
			}
			return nil
		},
	}
}

func newOrdersCmd(app *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Run the orders setup (mobile bypass, login, merchant agreement)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := app.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			if email == "" || password == "" {
				creds := o.GetCredentials(cmd.Context())
				if email == "" {
					email = creds.Email
				}
				if password == "" {
					password = creds.Password
				}
			}
			res := o.SetupForOrders(cmd.Context(), email, password)
			if err := printJSON(app, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%w: %v", ErrSetupFailed, res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Vendor email (default: session, then VALID_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Vendor password (default: session, then VALID_PASSWORD)")
	return cmd
}

func newCredentialsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Print the credentials tests should use, without creating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			o := bootstrap.New(store, nil, nil, bootstrap.OptionsFromConfig(app.Cfg), app.Logger)
			return printJSON(app, o.GetCredentials(cmd.Context()))
		},
	}
}
