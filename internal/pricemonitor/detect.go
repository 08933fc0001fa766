package pricemonitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/db"
	"strings"

	"github.com/shopspring/decimal"
)

// comparablePrice keeps only the digits, '.' and '-' of a display price, so
// "$1,299.00" compares as 1299. ok is false when what remains is not a number.
func comparablePrice(display string) (decimal.Decimal, bool) {
	var cleaned strings.Builder
	for _, r := range display {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// changePercent is ((new-old)/old)*100 rounded to two decimals, 0 when old is not positive.
func changePercent(oldPrice, newPrice decimal.Decimal) float64 {
	if !oldPrice.IsPositive() {
		return 0
	}
	pct, _ := newPrice.Sub(oldPrice).
		Div(oldPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return pct
}

// DetectChange compares a source's new display price against its previous one.
//
// When both prices parse and differ, a change is persisted and true is returned.
// When either price does not parse, the raw strings are compared instead and
// nothing is persisted. An empty old price is never a change.
func (s Store) DetectChange(ctx context.Context, sourceID int64, newPrice, oldPrice string) (bool, error) {
	_, changed, err := s.detectChange(ctx, sourceID, newPrice, oldPrice)
	return changed, err
}

// detectChange is DetectChange, change is nil unless a change was persisted.
func (s Store) detectChange(ctx context.Context, sourceID int64, newPrice, oldPrice string) (change *Change, changed bool, err error) {
	if oldPrice == "" {
		return nil, false, nil
	}

	oldValue, oldOk := comparablePrice(oldPrice)
	newValue, newOk := comparablePrice(newPrice)
	if !oldOk || !newOk {
		changed := oldPrice != newPrice
		if changed {
			s.tel.ReportWarning(
				report_store_detect_change,
				fmt.Errorf("unparseable price, compared as text"),
				telemetry.KV{Key: "source_id", Value: sourceID},
				telemetry.KV{Key: "old", Value: oldPrice},
				telemetry.KV{Key: "new", Value: newPrice},
			)
		}
		return nil, changed, nil
	}
	if oldValue.Equal(newValue) {
		return nil, false, nil
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return nil, false, s.persistenceErr("begin", err)
	}
	defer discard()

	source, err := tx.GetSource(ctx, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrSourceNotFound
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetSource", sourceID)
		return nil, false, s.persistenceErr("get source", err)
	}

	param := db.CreatePriceChangeParams{
		SourceID:         sourceID,
		Url:              source.Url,
		OldPrice:         oldPrice,
		NewPrice:         newPrice,
		ChangePercentage: changePercent(oldValue, newValue),
		DetectedAt:       s.clock.Now().Unix(),
	}
	id, err := tx.CreatePriceChange(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreatePriceChange", param)
		return nil, false, s.persistenceErr("create price change", err)
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_store_detect_change, fmt.Errorf("commit: %w", err))
		return nil, false, s.persistenceErr("commit", err)
	}

	s.tel.ReportDebug(
		"price change detected",
		telemetry.KV{Key: "source_id", Value: sourceID},
		telemetry.KV{Key: "old", Value: oldPrice},
		telemetry.KV{Key: "new", Value: newPrice},
		telemetry.KV{Key: "percent", Value: param.ChangePercentage},
	)
	return &Change{
		ID:            id,
		SourceID:      sourceID,
		SourceName:    source.Name,
		URL:           source.Url,
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		ChangePercent: param.ChangePercentage,
		DetectedAt:    s.fromUnix(param.DetectedAt),
	}, true, nil
}
