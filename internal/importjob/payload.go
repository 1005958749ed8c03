package importjob

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadKind tags the variant stored in an import job's error payload
// column. Historically that column held three unrelated shapes; the tag
// makes decoding unambiguous.
type PayloadKind string

const (
	PayloadKindNone             PayloadKind = ""
	PayloadKindError            PayloadKind = "error"
	PayloadKindReviewDraft      PayloadKind = "review_draft"
	PayloadKindProcessedOutcome PayloadKind = "processed_outcome"
	// PayloadKindUnparseable marks a payload that could not be decoded
	// as JSON. Its draft reads as empty.
	PayloadKindUnparseable PayloadKind = "unparseable"
)

// Recognized fuel type codes for receipt line items.
const (
	FuelTypeDiesel = "diesel"
	FuelTypeE5     = "e5"
	FuelTypeE10    = "e10"
	FuelTypeE85    = "e85"
	FuelTypeLPG    = "lpg"
	FuelTypeCNG    = "cng"
	FuelTypeAdBlue = "adblue"
)

var recognizedFuelTypes = map[string]bool{
	FuelTypeDiesel: true,
	FuelTypeE5:     true,
	FuelTypeE10:    true,
	FuelTypeE85:    true,
	FuelTypeLPG:    true,
	FuelTypeCNG:    true,
	FuelTypeAdBlue: true,
}

// Line is a single fuel purchase on a receipt. Quantities and prices are
// integers in milliliter / deci-cent-per-liter units.
type Line struct {
	FuelType                   string `json:"fuelType"`
	QuantityMilliliters        int64  `json:"quantityMilliLiters"`
	UnitPriceDeciCentsPerLiter int64  `json:"unitPriceDeciCentsPerLiter"`
	VATRatePercent             int    `json:"vatRatePercent"`
}

// Valid reports whether the line carries a recognized fuel type and sane
// integer fields. Invalid lines are dropped silently during the finalize
// merge; the emptiness check catches the all-dropped case.
func (l Line) Valid() bool {
	return recognizedFuelTypes[l.FuelType] &&
		l.QuantityMilliliters > 0 &&
		l.UnitPriceDeciCentsPerLiter > 0 &&
		l.VATRatePercent >= 0
}

// CreationPayload is the structured extraction output pending confirmation:
// everything needed to create a receipt.
type CreationPayload struct {
	IssuedAt          string   `json:"issuedAt,omitempty"`
	StationName       string   `json:"stationName,omitempty"`
	StationStreetName string   `json:"stationStreetName,omitempty"`
	StationPostalCode string   `json:"stationPostalCode,omitempty"`
	StationCity       string   `json:"stationCity,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Lines             []Line   `json:"lines,omitempty"`
}

// ProcessedOutcome summarizes a job that reached processed.
type ProcessedOutcome struct {
	JobID               uuid.UUID `json:"jobId"`
	Status              string    `json:"status"`
	FinalizedReceiptID  uuid.UUID `json:"finalizedReceiptId"`
	Source              string    `json:"source"`
	UsedCreationPayload bool      `json:"usedCreationPayload"`
	FinalizedAt         time.Time `json:"finalizedAt"`
}

// Outcome source tags.
const (
	OutcomeSourceAuto         = "auto"
	OutcomeSourceManualReview = "manual_review"
)

// Payload is the tagged variant persisted in the error payload column.
type Payload struct {
	Kind            PayloadKind       `json:"kind"`
	Message         string            `json:"message,omitempty"`
	CreationPayload *CreationPayload  `json:"creationPayload,omitempty"`
	Outcome         *ProcessedOutcome `json:"outcome,omitempty"`
}

// ErrorPayload builds the error variant.
func ErrorPayload(message string) Payload {
	return Payload{Kind: PayloadKindError, Message: message}
}

// ReviewDraftPayload builds the review-draft variant.
func ReviewDraftPayload(cp CreationPayload) Payload {
	return Payload{Kind: PayloadKindReviewDraft, CreationPayload: &cp}
}

// OutcomePayload builds the processed-outcome variant.
func OutcomePayload(o ProcessedOutcome) Payload {
	return Payload{Kind: PayloadKindProcessedOutcome, Outcome: &o}
}

// DecodePayload decodes a stored payload. A nil or empty value yields the
// zero payload; malformed JSON yields the unparseable kind. It never
// returns an error: drafts recovered from legacy rows must not break
// finalize.
func DecodePayload(raw *string) Payload {
	if raw == nil || *raw == "" {
		return Payload{}
	}

	var p Payload
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		return Payload{Kind: PayloadKindUnparseable}
	}
	return p
}

// Draft returns the creation payload held by a review draft, or the empty
// payload for every other kind.
func (p Payload) Draft() CreationPayload {
	if p.Kind == PayloadKindReviewDraft && p.CreationPayload != nil {
		return *p.CreationPayload
	}
	return CreationPayload{}
}

// Encode serializes the payload for storage.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
