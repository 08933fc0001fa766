package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"pricescout-backend/internal/pricemonitor"
	"pricescout-backend/pkg/serviceutil"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	sourceGoal       string
	sourceActiveOnly bool
)

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceGoal, "goal", "", "The extraction goal used for this source, defaults to extracting the current price.")
	sourcesListCmd.Flags().BoolVar(&sourceActiveOnly, "active", false, "Only list sources that are monitored.")

	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesDeactivateCmd)
	sourcesCmd.AddCommand(sourcesActivateCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func parseSourceId(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("source id %q is not a number", arg)
	}
	return id, nil
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manages the sources whose prices are monitored.",
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <url> [--goal <goal>]",
	Short: "Starts tracking the price of a product page.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp(cmd.Context(), appNeeds{store: true})
		defer a.Close()

		id, err := a.store.RegisterSource(cmd.Context(), args[0], args[1], sourceGoal)
		if errors.Is(err, pricemonitor.ErrAlreadyExists) {
			return fmt.Errorf("%s is already tracked", args[1])
		}
		if err != nil {
			serviceutil.Fatal("failed to add source", err)
		}
		slog.Info("added source", "id", id, "name", args[0])
		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list [--active]",
	Short: "Lists tracked sources.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), appNeeds{store: true})
		defer a.Close()

		sources, err := a.store.Sources(cmd.Context(), sourceActiveOnly)
		if err != nil {
			serviceutil.Fatal("failed to list sources", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "URL", "Active", "Added"})
		for _, src := range sources {
			t.AppendRow(table.Row{src.ID, src.Name, src.URL, src.Active, formatTime(src.CreatedAt)})
		}
		t.Render()
	},
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSourceId(args[0])
			if err != nil {
				return err
			}

			a := openApp(cmd.Context(), appNeeds{store: true})
			defer a.Close()

			err = a.store.SetSourceActive(cmd.Context(), id, active)
			if errors.Is(err, pricemonitor.ErrSourceNotFound) {
				return fmt.Errorf("source %d does not exist", id)
			}
			if err != nil {
				serviceutil.Fatal("failed to update source", err)
			}
			slog.Info("updated source", "id", id, "active", active)
			return nil
		},
	}
}

var sourcesDeactivateCmd = setActiveCmd(
	"deactivate <source-id>",
	"Stops monitoring a source, its history is kept.",
	false,
)

var sourcesActivateCmd = setActiveCmd(
	"activate <source-id>",
	"Resumes monitoring a source.",
	true,
)
