package store

// Schema creates the tables the store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS recommendations (
	id                  UUID PRIMARY KEY,
	listing_id          TEXT NOT NULL DEFAULT '',
	recommended_price   NUMERIC(12, 2) NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL,
	model_version       TEXT NOT NULL,
	weights_fingerprint TEXT NOT NULL,
	branch              TEXT NOT NULL,
	min_price_hit       BOOLEAN NOT NULL DEFAULT FALSE,
	ceiling_hit         BOOLEAN NOT NULL DEFAULT FALSE,
	request             JSONB,
	generated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS recommendations_listing_idx ON recommendations (listing_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS pricing_outcomes (
	id                BIGSERIAL PRIMARY KEY,
	listing_id        TEXT NOT NULL DEFAULT '',
	features          JSONB NOT NULL,
	actual_best_price NUMERIC(12, 2) NOT NULL,
	observed_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pricing_outcomes_observed_idx ON pricing_outcomes (observed_at);
`
