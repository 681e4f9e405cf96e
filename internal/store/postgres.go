package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates missing tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const recommendationColumns = `id, listing_id, recommended_price::float8, confidence,
	model_version, weights_fingerprint, branch, min_price_hit, ceiling_hit,
	request, generated_at`

func (s *PostgresStore) RecordRecommendation(ctx context.Context, rec *Recommendation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	requestJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO recommendations (id, listing_id, recommended_price, confidence,
			model_version, weights_fingerprint, branch, min_price_hit, ceiling_hit, request)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING generated_at`,
		rec.ID, rec.ListingID, rec.RecommendedPrice, rec.Confidence,
		rec.ModelVersion, rec.WeightsFingerprint, rec.Branch, rec.MinPriceHit, rec.CeilingHit, requestJSON,
	).Scan(&rec.GeneratedAt)
}

func (s *PostgresStore) GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recommendationColumns+`
		FROM recommendations WHERE id = $1`, id)
	rec, err := scanRecommendation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.ListingID != "" {
		n++
		query += fmt.Sprintf(" AND listing_id = $%d", n)
		args = append(args, filter.ListingID)
	}
	if filter.ModelVersion != "" {
		n++
		query += fmt.Sprintf(" AND model_version = $%d", n)
		args = append(args, filter.ModelVersion)
	}

	query += " ORDER BY generated_at DESC"

	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, clampLimit(filter.Limit))

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]map[string]interface{}, error) {
	query := `SELECT listing_id, features, actual_best_price::float8 FROM pricing_outcomes`
	args := []interface{}{}
	if filter.Since != nil {
		query += " WHERE observed_at >= $1"
		args = append(args, *filter.Since)
	}
	query += " ORDER BY observed_at ASC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var listingID string
		var featuresJSON []byte
		var label float64
		if err := rows.Scan(&listingID, &featuresJSON, &label); err != nil {
			return nil, err
		}
		rec, err := outcomeRecord(listingID, featuresJSON, label)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// outcomeRecord flattens a stored outcome into a training record.
func outcomeRecord(listingID string, featuresJSON []byte, label float64) (map[string]interface{}, error) {
	rec := map[string]interface{}{}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &rec); err != nil {
			return nil, fmt.Errorf("decode outcome features: %w", err)
		}
	}
	if listingID != "" {
		rec["listing_id"] = listingID
	}
	rec["actual_best_price"] = label
	return rec, nil
}

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	r := &Recommendation{}
	var requestJSON []byte
	err := row.Scan(
		&r.ID, &r.ListingID, &r.RecommendedPrice, &r.Confidence,
		&r.ModelVersion, &r.WeightsFingerprint, &r.Branch, &r.MinPriceHit, &r.CeilingHit,
		&requestJSON, &r.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	if requestJSON != nil {
		_ = json.Unmarshal(requestJSON, &r.Request)
	}
	return r, nil
}
