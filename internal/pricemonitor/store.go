package pricemonitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"pricescout-backend/internal/components/assert"
	"pricescout-backend/internal/components/chrono"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/db"
	"pricescout-backend/internal/product"
	"strings"
	"time"
)

const (
	report_db_query             = "db.query"
	report_store_register       = "store.register-source"
	report_store_detect_change  = "store.detect-change"
	report_store_record_observe = "store.record-observation"
)

var (
	ErrAlreadyExists  = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	// ErrPersistence wraps every failed write, the write's transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// DefaultExtractionGoal is used for sources registered without a goal.
const DefaultExtractionGoal = "Extract the current price of the product from this page. " +
	"Return a JSON object with 'price' (as string), 'currency' (if available), " +
	"and any other relevant product information like 'title', 'availability', etc."

type TrackedSource struct {
	ID             int64
	Name           string
	URL            string
	ExtractionGoal string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Observation struct {
	ID         int64
	SourceID   int64
	SourceName string
	URL        string
	Price      string
	Currency   string
	RawResult  json.RawMessage
	ObservedAt time.Time
}

type Change struct {
	ID            int64
	SourceID      int64
	SourceName    string
	URL           string
	OldPrice      string
	NewPrice      string
	ChangePercent float64
	DetectedAt    time.Time
}

// Store persists tracked sources and their price history.
type Store struct {
	db     *db.Queries
	makeTx db.MakeTx
	clock  chrono.API
	tel    telemetry.API
}

func NewStore(
	db *db.Queries,
	makeTx db.MakeTx,
	clock chrono.API,
	tel telemetry.API,
) Store {
	assert.NotNil(db, "db")
	assert.NotNil(makeTx, "makeTx")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")

	return Store{
		db:     db,
		makeTx: makeTx,
		clock:  clock,
		tel:    telemetry.NewScopedAPI("pricemonitor", tel),
	}
}

func (s Store) fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(s.clock.Location())
}

func (s Store) persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func (s Store) sourceFromRow(row db.TrackedSource) TrackedSource {
	return TrackedSource{
		ID:             row.ID,
		Name:           row.Name,
		URL:            row.Url,
		ExtractionGoal: row.ExtractionGoal,
		Active:         row.Active,
		CreatedAt:      s.fromUnix(row.CreatedAt),
		UpdatedAt:      s.fromUnix(row.UpdatedAt),
	}
}

func (s Store) observationFromRow(row db.PriceObservation, sourceName string) Observation {
	return Observation{
		ID:         row.ID,
		SourceID:   row.SourceID,
		SourceName: sourceName,
		URL:        row.Url,
		Price:      row.Price,
		Currency:   row.Currency,
		RawResult:  json.RawMessage(row.RawResult),
		ObservedAt: s.fromUnix(row.ObservedAt),
	}
}

// RegisterSource starts tracking url, an empty goal means DefaultExtractionGoal.
// A url that is already tracked returns ErrAlreadyExists.
func (s Store) RegisterSource(ctx context.Context, name, url, goal string) (int64, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return 0, fmt.Errorf("source name and url must not be empty")
	}
	if strings.TrimSpace(goal) == "" {
		goal = DefaultExtractionGoal
	}

	now := s.clock.Now().Unix()
	param := db.CreateSourceParams{
		Name:           name,
		Url:            url,
		ExtractionGoal: goal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := s.db.CreateSource(ctx, param)
	if errors.Is(err, sql.ErrNoRows) {
		s.tel.ReportWarning(report_store_register, ErrAlreadyExists, telemetry.KV{Key: "url", Value: url})
		return 0, ErrAlreadyExists
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateSource", param)
		return 0, s.persistenceErr("create source", err)
	}

	s.tel.ReportDebug("registered source", telemetry.KV{Key: "id", Value: id}, telemetry.KV{Key: "url", Value: url})
	return id, nil
}

// SetSourceActive pauses (or resumes) monitoring of a source, history is kept.
func (s Store) SetSourceActive(ctx context.Context, id int64, active bool) error {
	param := db.SetSourceActiveParams{
		Active:    active,
		UpdatedAt: s.clock.Now().Unix(),
		ID:        id,
	}
	affected, err := s.db.SetSourceActive(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "SetSourceActive", param)
		return s.persistenceErr("set source active", err)
	}
	if affected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

func (s Store) Source(ctx context.Context, id int64) (TrackedSource, error) {
	row, err := s.db.GetSource(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackedSource{}, ErrSourceNotFound
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetSource", id)
		return TrackedSource{}, err
	}
	return s.sourceFromRow(row), nil
}

// Sources lists tracked sources in registration order.
func (s Store) Sources(ctx context.Context, activeOnly bool) ([]TrackedSource, error) {
	var rows []db.TrackedSource
	var err error
	if activeOnly {
		rows, err = s.db.ListActiveSources(ctx)
	} else {
		rows, err = s.db.ListSources(ctx)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListSources", activeOnly)
		return nil, err
	}

	out := make([]TrackedSource, len(rows))
	for i, row := range rows {
		out[i] = s.sourceFromRow(row)
	}
	return out, nil
}

// LatestObservation returns the newest observation of a source, found is false
// when there is none yet.
func (s Store) LatestObservation(ctx context.Context, sourceID int64) (obs Observation, found bool, err error) {
	row, err := s.db.GetLatestObservation(ctx, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, false, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLatestObservation", sourceID)
		return Observation{}, false, err
	}
	return s.observationFromRow(row, ""), true, nil
}

// priceOf reads the display price and currency of the first product in raw,
// both are empty when raw carries no price.
func priceOf(raw json.RawMessage, url string) (price, currency string) {
	first := product.Normalize(raw, url)[0]
	if first.Price == product.DefaultPrice {
		return "", ""
	}
	return first.Price, first.Currency
}

// RecordObservation appends an observation of raw, the price and currency are
// read from its first product.
func (s Store) RecordObservation(ctx context.Context, sourceID int64, url string, raw json.RawMessage) (Observation, error) {
	price, currency := priceOf(raw, url)

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return Observation{}, s.persistenceErr("begin", err)
	}
	defer discard()

	param := db.CreateObservationParams{
		SourceID:   sourceID,
		Url:        url,
		Price:      price,
		Currency:   currency,
		RawResult:  string(raw),
		ObservedAt: s.clock.Now().Unix(),
	}
	id, err := tx.CreateObservation(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateObservation", sourceID, url)
		return Observation{}, s.persistenceErr("create observation", err)
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_store_record_observe, fmt.Errorf("commit: %w", err))
		return Observation{}, s.persistenceErr("commit", err)
	}

	s.tel.ReportDebug(
		"stored observation",
		telemetry.KV{Key: "source_id", Value: sourceID},
		telemetry.KV{Key: "price", Value: price},
		telemetry.KV{Key: "currency", Value: currency},
	)
	return s.observationFromRow(db.PriceObservation{
		ID:         id,
		SourceID:   param.SourceID,
		Url:        param.Url,
		Price:      param.Price,
		Currency:   param.Currency,
		RawResult:  param.RawResult,
		ObservedAt: param.ObservedAt,
	}, ""), nil
}

// History returns up to limit observations of a source, newest first.
func (s Store) History(ctx context.Context, sourceID int64, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 30
	}
	param := db.GetObservationHistoryParams{SourceID: sourceID, Limit: int64(limit)}
	rows, err := s.db.GetObservationHistory(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetObservationHistory", param)
		return nil, err
	}

	out := make([]Observation, len(rows))
	for i, row := range rows {
		out[i] = s.observationFromRow(row.PriceObservation, row.Name)
	}
	return out, nil
}

// RecentChanges returns the changes detected in the last `days` days, newest first.
func (s Store) RecentChanges(ctx context.Context, days int) ([]Change, error) {
	if days <= 0 {
		days = 7
	}
	since := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	rows, err := s.db.GetChangesSince(ctx, since)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetChangesSince", since)
		return nil, err
	}

	out := make([]Change, len(rows))
	for i, row := range rows {
		out[i] = Change{
			ID:            row.PriceChange.ID,
			SourceID:      row.PriceChange.SourceID,
			SourceName:    row.Name,
			URL:           row.PriceChange.Url,
			OldPrice:      row.PriceChange.OldPrice,
			NewPrice:      row.PriceChange.NewPrice,
			ChangePercent: row.PriceChange.ChangePercentage,
			DetectedAt:    s.fromUnix(row.PriceChange.DetectedAt),
		}
	}
	return out, nil
}
