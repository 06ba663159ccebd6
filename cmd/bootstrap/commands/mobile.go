package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipgl/vendor-bootstrap/internal/datastore"
)

type statusOutput struct {
	Email          string `json:"email"`
	Exists         bool   `json:"exists"`
	MobileVerified int    `json:"mobile_verified"`
}

type vendorOutput struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	MobileVerified int       `json:"mobile_verified"`
	CreatedAt      time.Time `json:"created_at"`
}

var _ Datastore = (*datastore.Gateway)(nil)

func newMobileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mobile",
		Short: "Read or flip the mobile_verified flag in the vendor datastore",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <email>",
		Short: "Show the verification flag (-1 when the vendor does not exist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.requireGateway(cmd.Context())
			if err != nil {
				return err
			}
			st, err := gw.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(app, statusOutput{Email: args[0], Exists: st.Exists, MobileVerified: int(st.MobileVerified)})
		},
	})

	flip := func(use, short string, apply func(cmd *cobra.Command, gw Datastore, email string) (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <email>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				gw, err := app.requireGateway(cmd.Context())
				if err != nil {
					return err
				}
				msg, err := apply(cmd, gw, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(app.Out, msg)
				return err
			},
		}
	}
	cmd.AddCommand(flip("verify", "Mark the vendor's mobile as verified", func(cmd *cobra.Command, gw Datastore, email string) (string, error) {
		return gw.VerifyMobile(cmd.Context(), email)
	}))
	cmd.AddCommand(flip("reset", "Mark the vendor's mobile as unverified", func(cmd *cobra.Command, gw Datastore, email string) (string, error) {
		return gw.ResetMobile(cmd.Context(), email)
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "vendor <email>",
		Short: "Show the vendor row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.requireGateway(cmd.Context())
			if err != nil {
				return err
			}
			v, err := gw.Vendor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(app, vendorOutput{ID: v.ID, Email: v.Email, MobileVerified: int(v.MobileVerified), CreatedAt: v.CreatedAt})
		},
	})
	return cmd
}
