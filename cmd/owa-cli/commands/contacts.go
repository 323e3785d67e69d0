package commands

import (
	"fmt"
	"log/slog"
	"os"
	"owascrape/internal/owa"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	contactsConcurrency int
	contactsMatch       string
	contactsLimit       int
)

func init() {
	contactsCmd.Flags().IntVarP(&contactsConcurrency, "concurrency", "n", 10, "The number of concurrent workers paging through the address book.")
	contactsCmd.Flags().StringVarP(&contactsMatch, "match", "m", "", "Ranks contacts by similarity to this name instead of listing them alphabetically.")
	contactsCmd.Flags().IntVar(&contactsLimit, "limit", 10, "The number of ranked contacts to print with --match.")
	rootCmd.AddCommand(contactsCmd)
}

type rankedName struct {
	name       string
	similarity float64
}

// rankNames orders names by Jaro-Winkler similarity to target (case
// insensitive), ties are broken alphabetically.
func rankNames(names []string, target string) []rankedName {
	target = strings.ToLower(target)
	ranked := make([]rankedName, len(names))
	for i, name := range names {
		ranked[i] = rankedName{
			name:       name,
			similarity: matchr.JaroWinkler(strings.ToLower(name), target, false),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].similarity == ranked[j].similarity {
			return ranked[i].name < ranked[j].name
		}
		return ranked[i].similarity > ranked[j].similarity
	})
	return ranked
}

var contactsCmd = &cobra.Command{
	Use:   "contacts [--match <name>]",
	Short: "Scrapes every contact name from the address book.",
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency := contactsConcurrency
		if !cmd.Flags().Changed("concurrency") && config.Concurrency > 0 {
			concurrency = config.Concurrency
		}

		s, _, err := login(cmd.Context())
		if err != nil {
			return err
		}

		t1 := time.Now()
		names, err := owa.ScrapeContacts(cmd.Context(), s, concurrency)
		if err != nil {
			return fmt.Errorf("scrape contacts: %w", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds(), "contacts", names.Len())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		if contactsMatch == "" {
			t.AppendHeader(table.Row{"Name"})
			for _, name := range names.Sorted() {
				t.AppendRow(table.Row{name})
			}
		} else {
			t.AppendHeader(table.Row{"Name", "Similarity"})
			ranked := rankNames(names.Sorted(), contactsMatch)
			if contactsLimit > 0 && len(ranked) > contactsLimit {
				ranked = ranked[:contactsLimit]
			}
			for _, r := range ranked {
				t.AppendRow(table.Row{r.name, fmt.Sprintf("%.3f", r.similarity)})
			}
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
