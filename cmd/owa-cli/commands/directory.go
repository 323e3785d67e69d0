package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"owascrape/internal/owa"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	findFolder string
	findOffset int
	findMax    int
)

func init() {
	findCmd.Flags().StringVar(&findFolder, "folder", "", "The id of the address list to search (see the filters command).")
	findCmd.Flags().IntVar(&findOffset, "offset", 0, "The index of the first persona to return.")
	findCmd.Flags().IntVar(&findMax, "max", 0, "The maximum number of personas to return, 0 is unlimited.")
	findCmd.MarkFlagRequired("folder")

	rootCmd.AddCommand(filtersCmd, findCmd, personaCmd, passwordExpiryCmd, identityCmd)
}

func printJson(raw json.RawMessage) error {
	var out bytes.Buffer
	err := json.Indent(&out, raw, "", "  ")
	if err != nil {
		return fmt.Errorf("response is not json: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(os.Stdout)
	return err
}

// serviceCommand logs in and prints the json response of call.
func serviceCommand(call func(ctx context.Context, s *owa.Session, args []string) (json.RawMessage, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, _, err := login(cmd.Context())
		if err != nil {
			return err
		}
		res, err := call(cmd.Context(), s, args)
		if err != nil {
			return err
		}
		return printJson(res)
	}
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Prints the address lists and folders that can be searched.",
	Args:  cobra.NoArgs,
	RunE: serviceCommand(func(ctx context.Context, s *owa.Session, _ []string) (json.RawMessage, error) {
		return owa.GetPeopleFilters(ctx, s)
	}),
}

var findCmd = &cobra.Command{
	Use:   "find [query] --folder <id>",
	Short: "Searches an address list for personas.",
	Args:  cobra.MaximumNArgs(1),
	RunE: serviceCommand(func(ctx context.Context, s *owa.Session, args []string) (json.RawMessage, error) {
		params := owa.FindPeopleParams{
			FolderId:           findFolder,
			Offset:             findOffset,
			MaxEntriesReturned: findMax,
		}
		if len(args) > 0 {
			params.QueryString = args[0]
		}
		return owa.FindPeople(ctx, s, params)
	}),
}

var personaCmd = &cobra.Command{
	Use:   "persona <id>",
	Short: "Prints the properties of a single persona.",
	Args:  cobra.ExactArgs(1),
	RunE: serviceCommand(func(ctx context.Context, s *owa.Session, args []string) (json.RawMessage, error) {
		return owa.GetPersona(ctx, s, args[0])
	}),
}

var passwordExpiryCmd = &cobra.Command{
	Use:   "password-expiry",
	Short: "Prints the number of days until the account's password expires.",
	Args:  cobra.NoArgs,
	RunE: serviceCommand(func(ctx context.Context, s *owa.Session, _ []string) (json.RawMessage, error) {
		return owa.GetDaysUntilPasswordExpiration(ctx, s)
	}),
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Prints the account identity shown on the ECP home page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := login(cmd.Context())
		if err != nil {
			return err
		}
		identity, err := owa.GetAccountIdentity(cmd.Context(), s)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Property", "Value"})
		for _, key := range sortedKeys(identity) {
			t.AppendRow(table.Row{key, fmt.Sprint(identity[key])})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
