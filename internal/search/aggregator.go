package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"pricescout-backend/internal/components/assert"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/extraction"
	"pricescout-backend/internal/product"
	"strings"

	"github.com/google/uuid"
)

const (
	report_aggregator_source = "aggregator.source"
	report_aggregator_search = "aggregator.search"
)

// ErrNotFound is returned by a batch search that found no products at all.
var ErrNotFound = errors.New("no products found")

// Extractor runs a single extraction, *extraction.Client implements it.
type Extractor interface {
	Extract(ctx context.Context, url, goal string) (json.RawMessage, error)
}

type Options struct {
	// Retailers defaults to DefaultRetailers.
	Retailers []Retailer
	// MaxSources defaults to DefaultMaxSources.
	MaxSources int
}

// Source is a single page a query is searched on.
type Source struct {
	Retailer string
	URL      string
}

// Aggregator searches a query across several retailers one after another.
type Aggregator struct {
	extractor  Extractor
	retailers  []Retailer
	maxSources int
	tel        telemetry.API
}

func NewAggregator(extractor Extractor, opts Options, tel telemetry.API) Aggregator {
	assert.NotNil(extractor, "extractor")
	assert.NotNil(tel, "tel")

	if len(opts.Retailers) == 0 {
		opts.Retailers = DefaultRetailers
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = DefaultMaxSources
	}

	return Aggregator{
		extractor:  extractor,
		retailers:  opts.Retailers,
		maxSources: opts.MaxSources,
		tel:        telemetry.NewScopedAPI("search", tel),
	}
}

// Sources lists the pages a query will be searched on, in order.
func (a Aggregator) Sources(query string, kind QueryKind) []Source {
	query = strings.TrimSpace(query)
	if kind == QueryImage && query == "" {
		query = defaultImageQuery
	}

	retailers := a.retailers
	if len(retailers) > a.maxSources {
		retailers = retailers[:a.maxSources]
	}
	sources := make([]Source, len(retailers))
	for i, r := range retailers {
		sources[i] = Source{Retailer: r.Name, URL: r.URL(query)}
	}
	return sources
}

// Stream searches every source in order and yields the search's events as they
// happen. The sequence always ends with a complete event carrying every product
// found, sources that fail yield an error or no_results event instead of ending it.
//
// The sequence is single use. Stopping iteration early skips the remaining sources,
// an extraction that is already running is not interrupted.
func (a Aggregator) Stream(ctx context.Context, query string, kind QueryKind) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		searchID := uuid.NewString()
		goal := ExtractionGoal(kind, query)
		sources := a.Sources(query, kind)

		a.tel.ReportDebug(
			"search started",
			telemetry.KV{Key: "search_id", Value: searchID},
			telemetry.KV{Key: "query", Value: query},
			telemetry.KV{Key: "kind", Value: kind},
			telemetry.KV{Key: "sources", Value: len(sources)},
		)

		if !yield(Event{Type: EventStatus, Message: "Starting search..."}) {
			return
		}

		var all []product.Product
		for i, source := range sources {
			progress := fmt.Sprintf("%d/%d", i+1, len(sources))
			if !yield(Event{
				Type:     EventSearching,
				Retailer: source.Retailer,
				URL:      source.URL,
				Progress: progress,
			}) {
				return
			}

			products, ev := a.searchSource(ctx, searchID, source, goal)
			all = append(all, products...)
			if !yield(ev) {
				return
			}
		}

		a.tel.ReportCount(report_aggregator_search, int64(len(all)))
		yield(Event{Type: EventComplete, Products: nonNil(all)})
	}
}

// searchSource extracts a single source, failures are turned into events.
func (a Aggregator) searchSource(ctx context.Context, searchID string, source Source, goal string) ([]product.Product, Event) {
	if err := ctx.Err(); err != nil {
		return nil, Event{Type: EventError, Retailer: source.Retailer, Error: err.Error()}
	}

	raw, err := a.extractor.Extract(ctx, source.URL, goal)
	if errors.Is(err, extraction.ErrNoResult) || errors.Is(err, extraction.ErrUpstreamRejected) {
		a.tel.ReportWarning(
			report_aggregator_source,
			err,
			telemetry.KV{Key: "search_id", Value: searchID},
			telemetry.KV{Key: "retailer", Value: source.Retailer},
		)
		return nil, Event{Type: EventNoResults, Retailer: source.Retailer}
	}
	if err != nil {
		a.tel.ReportWarning(
			report_aggregator_source,
			err,
			telemetry.KV{Key: "search_id", Value: searchID},
			telemetry.KV{Key: "retailer", Value: source.Retailer},
		)
		return nil, Event{Type: EventError, Retailer: source.Retailer, Error: err.Error()}
	}
	if len(raw) == 0 {
		return nil, Event{Type: EventNoResults, Retailer: source.Retailer}
	}

	products := product.Normalize(raw, source.URL)
	for i := range products {
		products[i].Seller = source.Retailer
		if products[i].ProductURL == "" {
			products[i].ProductURL = source.URL
		}
	}

	a.tel.ReportDebug(
		"source searched",
		telemetry.KV{Key: "search_id", Value: searchID},
		telemetry.KV{Key: "retailer", Value: source.Retailer},
		telemetry.KV{Key: "count", Value: len(products)},
	)
	return products, Event{Type: EventProducts, Retailer: source.Retailer, Products: products}
}

// Search is the batch form of Stream, it returns every product found or
// ErrNotFound when no source produced any.
func (a Aggregator) Search(ctx context.Context, query string, kind QueryKind) ([]product.Product, error) {
	var products []product.Product
	for ev := range a.Stream(ctx, query, kind) {
		if ev.Type == EventComplete {
			products = ev.Products
		}
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return products, nil
}
