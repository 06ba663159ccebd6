package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const flagLogLevel = "log-level"

// NewRootCmd builds the bootstrap CLI around app.
func NewRootCmd(app *App) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "vendor-bootstrap",
		Short: "Provision vendor test identities for the portal UI suites",
		Long: `vendor-bootstrap creates or reuses the vendor account that UI test modules log in with.
Heavy modules (HEAVY_MODULES, default "orders") additionally get the mobile verification
bypass, a fresh login and the merchant agreement accepted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(logLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			app.Close()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, flagLogLevel, "", "Log level override (env: LOG_LEVEL)")

	root.AddCommand(newModuleCmd(app))
	root.AddCommand(newOrdersCmd(app))
	root.AddCommand(newCredentialsCmd(app))
	root.AddCommand(newSessionCmd(app))
	root.AddCommand(newMobileCmd(app))
	return root
}

func printJSON(app *App, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.Out, string(out))
	return err
}
