package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the lifecycle state of an issued authorization.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusConsumed Status = "consumed"
	StatusReverted Status = "reverted"
)

// ErrNotFound is returned when the ledger has no record for a key.
var ErrNotFound = errors.New("upload not found")

// Ledger records authorization lifecycle events for audit. Signature
// verification never consults it; expiry is always evaluated from the URL.
type Ledger interface {
	Issued(ctx context.Context, a *Authorization) error
	Consumed(ctx context.Context, key, detectedType string) error
	Reverted(ctx context.Context, key string) error
}

// NopLedger discards every event.
type NopLedger struct{}

func (NopLedger) Issued(context.Context, *Authorization) error   { return nil }
func (NopLedger) Consumed(context.Context, string, string) error { return nil }
func (NopLedger) Reverted(context.Context, string) error         { return nil }

// Record is a ledger row.
type Record struct {
	Key          string
	Disk         string
	Status       Status
	ContentType  string
	DetectedType *string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	RevertedAt   *time.Time
}

// Repository is the PostgreSQL Ledger.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Issued inserts a row for a freshly issued authorization.
func (r *Repository) Issued(ctx context.Context, a *Authorization) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO uploads (key, disk, status, content_type, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.Key, a.Backend.String(), StatusIssued, a.Headers["Content-Type"], a.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// Consumed marks the upload as persisted and stores the sniffed content type.
func (r *Repository) Consumed(ctx context.Context, key, detectedType string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE uploads SET status = $2, detected_type = $3, consumed_at = NOW()
		 WHERE key = $1`,
		key, StatusConsumed, detectedType,
	)
	if err != nil {
		return fmt.Errorf("mark upload consumed: %w", err)
	}
	return nil
}

// Reverted marks the upload as discarded. Repeated calls keep the first timestamp.
func (r *Repository) Reverted(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE uploads SET status = $2, reverted_at = COALESCE(reverted_at, NOW())
		 WHERE key = $1`,
		key, StatusReverted,
	)
	if err != nil {
		return fmt.Errorf("mark upload reverted: %w", err)
	}
	return nil
}

// Get fetches the ledger row for key.
func (r *Repository) Get(ctx context.Context, key string) (*Record, error) {
	rec := &Record{}
	err := r.db.QueryRow(ctx,
		`SELECT key, disk, status, content_type, detected_type, issued_at, expires_at, consumed_at, reverted_at
		 FROM uploads WHERE key = $1`,
		key,
	).Scan(&rec.Key, &rec.Disk, &rec.Status, &rec.ContentType, &rec.DetectedType,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.ConsumedAt, &rec.RevertedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return rec, nil
}
