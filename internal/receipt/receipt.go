package receipt

import (
	"time"

	"github.com/google/uuid"
)

// Line is a fuel purchase line on a receipt, in the pipeline's integer units.
type Line struct {
	FuelType                   string
	QuantityMilliliters        int64
	UnitPriceDeciCentsPerLiter int64
	VATRatePercent             int
}

// CreationInput is everything needed to create a receipt from a confirmed
// import. OwnerID is always the import job's original owner, never the
// actor performing the operation.
type CreationInput struct {
	OwnerID           uuid.UUID
	IssuedAt          time.Time
	StationName       string
	StationStreetName string
	StationPostalCode string
	StationCity       string
	Latitude          *float64
	Longitude         *float64
	Lines             []Line
}
