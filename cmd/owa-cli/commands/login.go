package commands

import (
	"errors"
	"os"
	"owascrape/internal/owa"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Attempts a login and prints how OWA responded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, result, err := login(cmd.Context())

		var authErr *owa.AuthError
		if err != nil && !errors.As(err, &authErr) {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Username", "Outcome", "Reason", "Elapsed"})
		if authErr != nil {
			t.AppendRow(table.Row{config.Username, authErr.Kind.String(), authErr.RawReason, authErr.Elapsed.String()})
		} else {
			t.AppendRow(table.Row{config.Username, owa.KindSuccess.String(), "", result.Elapsed.String()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		return err
	},
}
