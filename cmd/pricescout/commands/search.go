package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"pricescout-backend/internal/product"
	"pricescout-backend/internal/search"
	"pricescout-backend/pkg/serviceutil"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchImage      bool
	searchStream     bool
	searchJson       bool
	searchMaxSources int
)

func init() {
	searchCmd.Flags().BoolVar(&searchImage, "image", false, "Treat the query as the description of an image, the query may then be empty.")
	searchCmd.Flags().BoolVar(&searchStream, "stream", false, "Write progress events to stdout as they happen, in event-stream framing.")
	searchCmd.Flags().BoolVar(&searchJson, "json", false, "Write the batch result as json instead of a table.")
	searchCmd.Flags().IntVar(&searchMaxSources, "max-sources", 0, "The number of retailers to search, defaults to search.max_sources or 6.")
	rootCmd.AddCommand(searchCmd)
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "-"
	}
	return strconv.FormatFloat(*rating, 'f', 1, 64)
}

func renderProducts(products []product.Product) {
	t := newTable()
	t.AppendHeader(table.Row{"Seller", "Title", "Price", "Discount", "Rating", "Availability", "URL"})
	for _, p := range products {
		discount := "-"
		if p.DiscountPercentage != nil {
			discount = strconv.FormatFloat(*p.DiscountPercentage, 'f', 1, 64) + "%"
		}
		t.AppendRow(table.Row{
			p.Seller,
			p.Title,
			p.Price,
			discount,
			formatRating(p.Rating),
			p.Availability,
			p.ProductURL,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(products)})
	t.Render()
}

var searchCmd = &cobra.Command{
	Use:   "search [--image] [--stream | --json] <query...>",
	Short: "Searches retailers for products matching a query.",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := search.QueryText
		if searchImage {
			kind = search.QueryImage
		}
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" && kind == search.QueryText {
			return fmt.Errorf("a search query is required")
		}

		a := openApp(cmd.Context(), appNeeds{extractor: true})
		defer a.Close()

		maxSources := searchMaxSources
		if maxSources <= 0 {
			maxSources = a.cfg.Search.MaxSources
		}
		aggregator := search.NewAggregator(a.extractor, search.Options{MaxSources: maxSources}, a.tel)

		if searchStream {
			for ev := range aggregator.Stream(cmd.Context(), query, kind) {
				err := search.WriteEvent(os.Stdout, ev)
				if err != nil {
					return err
				}
			}
			return nil
		}

		products, err := aggregator.Search(cmd.Context(), query, kind)
		if searchJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(search.NewBatchResult(query, products, err))
		}
		if errors.Is(err, search.ErrNotFound) {
			fmt.Println(search.NewBatchResult(query, products, err).Error)
			return nil
		}
		if err != nil {
			serviceutil.Fatal("search failed", err)
		}
		renderProducts(products)
		return nil
	},
}
