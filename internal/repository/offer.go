package repository

import (
	"context"
	"fmt"

	"ymlfeed/exporter/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const batchSize = 500

const schema = `
CREATE TABLE IF NOT EXISTS feed_offers (
	feed_url      TEXT NOT NULL,
	id            TEXT NOT NULL,
	category_name TEXT NOT NULL,
	pictures      TEXT NOT NULL DEFAULT '',
	data          JSONB NOT NULL,
	run_id        TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (feed_url, id)
)`

const upsertOffer = `
INSERT INTO feed_offers (feed_url, id, category_name, pictures, data, run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (feed_url, id)
DO UPDATE SET category_name = $3, pictures = $4, data = $5, run_id = $6, updated_at = now()`

// OfferRepository mirrors exported offers into Postgres.
type OfferRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveOffers(ctx context.Context, feedURL, runID string, offers []*domain.Offer) error
}

// dbtx is the part of *pgxpool.Pool the repository uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type offerRepository struct {
	db dbtx
}

func NewOfferRepository(db *pgxpool.Pool) OfferRepository {
	return &offerRepository{
		db: db,
	}
}

func (r *offerRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create feed_offers table: %w", err)
	}
	return nil
}

// SaveOffers upserts offers in batches. Offers are keyed by (feed_url, id), so
// offers without an id collapse into one row per feed.
func (r *offerRepository) SaveOffers(ctx context.Context, feedURL, runID string, offers []*domain.Offer) error {
	for start := 0; start < len(offers); start += batchSize {
		end := min(start+batchSize, len(offers))

		batch := &pgx.Batch{}
		for _, offer := range offers[start:end] {
			batch.Queue(upsertOffer, feedURL, offer.ID, offer.CategoryName, offer.PicturesField(), offer.Extra, runID)
		}

		if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save offers %d-%d: %w", start, end, err)
		}
	}

	return nil
}
