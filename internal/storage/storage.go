package storage

import (
	"context"

	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// ReadingStore persists alert-triggering readings and serves historical
// queries. The pipeline only appends; it never reads its own writes.
type ReadingStore interface {
	Insert(ctx context.Context, reading *models.Reading) error
	List(ctx context.Context, tagNumber string, limit int) ([]*models.Reading, error)
	Ping(ctx context.Context) error
	Close()
}
