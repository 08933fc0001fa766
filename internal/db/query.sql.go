package db

import (
	"context"
)

const createSource = `-- name: CreateSource :one
INSERT INTO tracked_sources(name, url, extraction_goal, active, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT(url) DO NOTHING
RETURNING id
`

type CreateSourceParams struct {
	Name           string
	Url            string
	ExtractionGoal string
	CreatedAt      int64
	UpdatedAt      int64
}

// CreateSource returns sql.ErrNoRows when a source with the same url already exists.
func (q *Queries) CreateSource(ctx context.Context, arg CreateSourceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSource,
		arg.Name,
		arg.Url,
		arg.ExtractionGoal,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getSource = `-- name: GetSource :one
SELECT id, name, url, extraction_goal, active, created_at, updated_at FROM tracked_sources WHERE id = ?
`

func (q *Queries) GetSource(ctx context.Context, id int64) (TrackedSource, error) {
	row := q.db.QueryRowContext(ctx, getSource, id)
	var i TrackedSource
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Url,
		&i.ExtractionGoal,
		&i.Active,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listSources = `-- name: ListSources :many
SELECT id, name, url, extraction_goal, active, created_at, updated_at FROM tracked_sources ORDER BY id ASC
`

func (q *Queries) ListSources(ctx context.Context) ([]TrackedSource, error) {
	return q.querySources(ctx, listSources)
}

const listActiveSources = `-- name: ListActiveSources :many
SELECT id, name, url, extraction_goal, active, created_at, updated_at FROM tracked_sources WHERE active = 1 ORDER BY id ASC
`

func (q *Queries) ListActiveSources(ctx context.Context) ([]TrackedSource, error) {
	return q.querySources(ctx, listActiveSources)
}

func (q *Queries) querySources(ctx context.Context, query string) ([]TrackedSource, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrackedSource
	for rows.Next() {
		var i TrackedSource
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Url,
			&i.ExtractionGoal,
			&i.Active,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setSourceActive = `-- name: SetSourceActive :execrows
UPDATE tracked_sources SET active = ?, updated_at = ? WHERE id = ?
`

type SetSourceActiveParams struct {
	Active    bool
	UpdatedAt int64
	ID        int64
}

func (q *Queries) SetSourceActive(ctx context.Context, arg SetSourceActiveParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setSourceActive, arg.Active, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createObservation = `-- name: CreateObservation :one
INSERT INTO price_observations(source_id, url, price, currency, raw_result, observed_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateObservationParams struct {
	SourceID   int64
	Url        string
	Price      string
	Currency   string
	RawResult  string
	ObservedAt int64
}

func (q *Queries) CreateObservation(ctx context.Context, arg CreateObservationParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createObservation,
		arg.SourceID,
		arg.Url,
		arg.Price,
		arg.Currency,
		arg.RawResult,
		arg.ObservedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getLatestObservation = `-- name: GetLatestObservation :one
SELECT id, source_id, url, price, currency, raw_result, observed_at FROM price_observations
WHERE source_id = ?
ORDER BY observed_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestObservation(ctx context.Context, sourceID int64) (PriceObservation, error) {
	row := q.db.QueryRowContext(ctx, getLatestObservation, sourceID)
	var i PriceObservation
	err := row.Scan(
		&i.ID,
		&i.SourceID,
		&i.Url,
		&i.Price,
		&i.Currency,
		&i.RawResult,
		&i.ObservedAt,
	)
	return i, err
}

const getObservationHistory = `-- name: GetObservationHistory :many
SELECT price_observations.id, price_observations.source_id, price_observations.url, price_observations.price, price_observations.currency, price_observations.raw_result, price_observations.observed_at, tracked_sources.name FROM price_observations
INNER JOIN tracked_sources ON tracked_sources.id = price_observations.source_id
WHERE price_observations.source_id = ?
ORDER BY price_observations.observed_at DESC, price_observations.id DESC
LIMIT ?
`

type GetObservationHistoryParams struct {
	SourceID int64
	Limit    int64
}

type GetObservationHistoryRow struct {
	PriceObservation PriceObservation
	Name             string
}

func (q *Queries) GetObservationHistory(ctx context.Context, arg GetObservationHistoryParams) ([]GetObservationHistoryRow, error) {
	rows, err := q.db.QueryContext(ctx, getObservationHistory, arg.SourceID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetObservationHistoryRow
	for rows.Next() {
		var i GetObservationHistoryRow
		if err := rows.Scan(
			&i.PriceObservation.ID,
			&i.PriceObservation.SourceID,
			&i.PriceObservation.Url,
			&i.PriceObservation.Price,
			&i.PriceObservation.Currency,
			&i.PriceObservation.RawResult,
			&i.PriceObservation.ObservedAt,
			&i.Name,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPriceChange = `-- name: CreatePriceChange :one
INSERT INTO price_changes(source_id, url, old_price, new_price, change_percentage, detected_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreatePriceChangeParams struct {
	SourceID         int64
	Url              string
	OldPrice         string
	NewPrice         string
	ChangePercentage float64
	DetectedAt       int64
}

func (q *Queries) CreatePriceChange(ctx context.Context, arg CreatePriceChangeParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createPriceChange,
		arg.SourceID,
		arg.Url,
		arg.OldPrice,
		arg.NewPrice,
		arg.ChangePercentage,
		arg.DetectedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getChangesSince = `-- name: GetChangesSince :many
SELECT price_changes.id, price_changes.source_id, price_changes.url, price_changes.old_price, price_changes.new_price, price_changes.change_percentage, price_changes.detected_at, tracked_sources.name FROM price_changes
INNER JOIN tracked_sources ON tracked_sources.id = price_changes.source_id
WHERE price_changes.detected_at >= ?
ORDER BY price_changes.detected_at DESC, price_changes.id DESC
`

type GetChangesSinceRow struct {
	PriceChange PriceChange
	Name        string
}

func (q *Queries) GetChangesSince(ctx context.Context, detectedAt int64) ([]GetChangesSinceRow, error) {
	rows, err := q.db.QueryContext(ctx, getChangesSince, detectedAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetChangesSinceRow
	for rows.Next() {
		var i GetChangesSinceRow
		if err := rows.Scan(
			&i.PriceChange.ID,
			&i.PriceChange.SourceID,
			&i.PriceChange.Url,
			&i.PriceChange.OldPrice,
			&i.PriceChange.NewPrice,
			&i.PriceChange.ChangePercentage,
			&i.PriceChange.DetectedAt,
			&i.Name,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
