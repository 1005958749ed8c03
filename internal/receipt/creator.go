package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Creator persists receipts produced by the import pipeline.
type Creator struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewCreator creates a new Creator instance.
func NewCreator(db *sqlx.DB, logger *slog.Logger) *Creator {
	return &Creator{db: db, logger: logger}
}

// Create inserts the receipt and its lines in one transaction and returns
// the new receipt id.
func (c *Creator) Create(ctx context.Context, in CreationInput) (uuid.UUID, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	receiptID := uuid.New()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (
			id, owner_id, issued_at,
			station_name, station_street_name, station_postal_code, station_city,
			latitude, longitude, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`,
		receiptID,
		in.OwnerID,
		in.IssuedAt,
		in.StationName,
		in.StationStreetName,
		in.StationPostalCode,
		in.StationCity,
		in.Latitude,
		in.Longitude,
		now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i, line := range in.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO receipt_lines (
				id, receipt_id, position, fuel_type,
				quantity_ml, unit_price_dcpl, vat_rate_percent
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			uuid.New(),
			receiptID,
			i,
			line.FuelType,
			line.QuantityMilliliters,
			line.UnitPriceDeciCentsPerLiter,
			line.VATRatePercent,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert receipt line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit receipt: %w", err)
	}

	c.logger.Info("Receipt created",
		slog.String("receipt_id", receiptID.String()),
		slog.String("owner_id", in.OwnerID.String()),
		slog.Int("line_count", len(in.Lines)),
	)

	return receiptID, nil
}
