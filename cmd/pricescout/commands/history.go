package commands

import (
	"fmt"
	"pricescout-backend/pkg/serviceutil"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	changesDays  int
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "The number of observations to show.")
	changesCmd.Flags().IntVar(&changesDays, "days", 7, "How many days back to look for changes.")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(changesCmd)
}

func formatPercent(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}

var historyCmd = &cobra.Command{
	Use:   "history <source-id> [--limit <n>]",
	Short: "Shows the recorded prices of a source, newest first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSourceId(args[0])
		if err != nil {
			return err
		}

		a := openApp(cmd.Context(), appNeeds{store: true})
		defer a.Close()

		source, err := a.store.Source(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("source %d: %w", id, err)
		}
		history, err := a.store.History(cmd.Context(), id, historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}

		t := newTable()
		t.SetTitle(fmt.Sprintf("%s (%s)", source.Name, source.URL))
		t.AppendHeader(table.Row{"Observed", "Price", "Currency"})
		for _, obs := range history {
			t.AppendRow(table.Row{formatTime(obs.ObservedAt), orDash(obs.Price), orDash(obs.Currency)})
		}
		t.Render()
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes [--days <n>]",
	Short: "Shows the price changes detected recently, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), appNeeds{store: true})
		defer a.Close()

		changes, err := a.store.RecentChanges(cmd.Context(), changesDays)
		if err != nil {
			serviceutil.Fatal("failed to read changes", err)
		}
		if len(changes) == 0 {
			fmt.Printf("No price changes in the last %d days.\n", changesDays)
			return
		}
		renderChanges(changes)
	},
}
