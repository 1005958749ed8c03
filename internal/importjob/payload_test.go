package importjob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDecodePayload(t *testing.T) {
	t.Run("nil yields zero payload", func(t *testing.T) {
		p := DecodePayload(nil)
		assert.Equal(t, PayloadKindNone, p.Kind)
		assert.Empty(t, p.Draft())
	})

	t.Run("empty string yields zero payload", func(t *testing.T) {
		p := DecodePayload(strPtr(""))
		assert.Equal(t, PayloadKindNone, p.Kind)
	})

	t.Run("malformed json yields unparseable", func(t *testing.T) {
		p := DecodePayload(strPtr("{not json"))
		assert.Equal(t, PayloadKindUnparseable, p.Kind)
		assert.Empty(t, p.Draft())
	})

	t.Run("legacy plain object without kind decodes as none", func(t *testing.T) {
		p := DecodePayload(strPtr(`{"message":"boom"}`))
		assert.Equal(t, PayloadKindNone, p.Kind)
		assert.Equal(t, "boom", p.Message)
	})

	t.Run("review draft round trips", func(t *testing.T) {
		lat := 52.52
		encoded, err := ReviewDraftPayload(CreationPayload{
			IssuedAt:    "2026-08-15T10:30:00Z",
			StationName: "Shell Hauptstrasse",
			Latitude:    &lat,
			Lines: []Line{
				{FuelType: FuelTypeDiesel, QuantityMilliliters: 45000, UnitPriceDeciCentsPerLiter: 1759, VATRatePercent: 19},
			},
		}).Encode()
		require.NoError(t, err)

		p := DecodePayload(&encoded)
		require.Equal(t, PayloadKindReviewDraft, p.Kind)

		draft := p.Draft()
		assert.Equal(t, "Shell Hauptstrasse", draft.StationName)
		require.Len(t, draft.Lines, 1)
		assert.Equal(t, int64(45000), draft.Lines[0].QuantityMilliliters)
	})
}

func TestPayload_Draft(t *testing.T) {
	t.Run("error payload reads as empty draft", func(t *testing.T) {
		assert.Empty(t, ErrorPayload("extraction rejected").Draft())
	})

	t.Run("outcome payload reads as empty draft", func(t *testing.T) {
		assert.Empty(t, OutcomePayload(ProcessedOutcome{Status: "processed"}).Draft())
	})
}

func TestLine_Valid(t *testing.T) {
	valid := Line{FuelType: FuelTypeE10, QuantityMilliliters: 30000, UnitPriceDeciCentsPerLiter: 1689, VATRatePercent: 19}

	tests := []struct {
		name   string
		mutate func(*Line)
		want   bool
	}{
		{"valid line", func(l *Line) {}, true},
		{"zero vat is allowed", func(l *Line) { l.VATRatePercent = 0 }, true},
		{"unrecognized fuel type", func(l *Line) { l.FuelType = "kerosene" }, false},
		{"empty fuel type", func(l *Line) { l.FuelType = "" }, false},
		{"zero quantity", func(l *Line) { l.QuantityMilliliters = 0 }, false},
		{"negative quantity", func(l *Line) { l.QuantityMilliliters = -1 }, false},
		{"zero unit price", func(l *Line) { l.UnitPriceDeciCentsPerLiter = 0 }, false},
		{"negative vat", func(l *Line) { l.VATRatePercent = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)
			assert.Equal(t, tt.want, l.Valid())
		})
	}
}

func TestValidLines(t *testing.T) {
	lines := []Line{
		{FuelType: FuelTypeDiesel, QuantityMilliliters: 45000, UnitPriceDeciCentsPerLiter: 1759, VATRatePercent: 19},
		{FuelType: "jetfuel", QuantityMilliliters: 1000, UnitPriceDeciCentsPerLiter: 2000, VATRatePercent: 19},
		{FuelType: FuelTypeAdBlue, QuantityMilliliters: 10000, UnitPriceDeciCentsPerLiter: 99, VATRatePercent: 19},
	}

	kept := ValidLines(lines)
	require.Len(t, kept, 2)
	assert.Equal(t, FuelTypeDiesel, kept[0].FuelType)
	assert.Equal(t, FuelTypeAdBlue, kept[1].FuelType)
}

func TestMergeCreationPayload(t *testing.T) {
	lat := 48.13
	draftLat := 50.94

	draft := CreationPayload{
		IssuedAt:          "2026-08-15T10:30:00Z",
		StationName:       "Aral Nord",
		StationStreetName: "Bahnhofstrasse 1",
		StationPostalCode: "50667",
		StationCity:       "Koeln",
		Latitude:          &draftLat,
		Lines: []Line{
			{FuelType: FuelTypeE5, QuantityMilliliters: 20000, UnitPriceDeciCentsPerLiter: 1800, VATRatePercent: 19},
		},
	}

	t.Run("caller fields win over draft", func(t *testing.T) {
		merged, usedDraft := MergeCreationPayload(FinalizeInput{
			StationName: "Aral Sued",
			Latitude:    &lat,
		}, draft)

		assert.Equal(t, "Aral Sued", merged.StationName)
		assert.Equal(t, &lat, merged.Latitude)
		// Fields the caller left empty fall back to the draft.
		assert.Equal(t, "2026-08-15T10:30:00Z", merged.IssuedAt)
		assert.Equal(t, "Koeln", merged.StationCity)
		assert.True(t, usedDraft)
	})

	t.Run("caller lines replace draft lines wholesale", func(t *testing.T) {
		callerLines := []Line{
			{FuelType: FuelTypeDiesel, QuantityMilliliters: 1000, UnitPriceDeciCentsPerLiter: 1700, VATRatePercent: 19},
			{FuelType: FuelTypeDiesel, QuantityMilliliters: 2000, UnitPriceDeciCentsPerLiter: 1700, VATRatePercent: 19},
		}
		merged, _ := MergeCreationPayload(FinalizeInput{Lines: callerLines}, draft)
		assert.Equal(t, callerLines, merged.Lines)
	})

	t.Run("complete caller input ignores draft entirely", func(t *testing.T) {
		in := FinalizeInput{
			IssuedAt:          "2026-08-20T08:00:00Z",
			StationName:       "Esso",
			StationStreetName: "Ring 2",
			StationPostalCode: "10115",
			StationCity:       "Berlin",
			Latitude:          &lat,
			Longitude:         &lat,
			Lines: []Line{
				{FuelType: FuelTypeCNG, QuantityMilliliters: 15000, UnitPriceDeciCentsPerLiter: 1100, VATRatePercent: 19},
			},
		}
		merged, usedDraft := MergeCreationPayload(in, draft)
		assert.Equal(t, "Esso", merged.StationName)
		assert.False(t, usedDraft)
	})

	t.Run("empty draft contributes nothing", func(t *testing.T) {
		_, usedDraft := MergeCreationPayload(FinalizeInput{StationName: "Esso"}, CreationPayload{})
		assert.False(t, usedDraft)
	})
}

func TestCreationPayload_Complete(t *testing.T) {
	complete := CreationPayload{
		IssuedAt:          "2026-08-15T10:30:00Z",
		StationName:       "Shell",
		StationStreetName: "Hauptstrasse 5",
		StationPostalCode: "80331",
		StationCity:       "Muenchen",
		Lines: []Line{
			{FuelType: FuelTypeE10, QuantityMilliliters: 40000, UnitPriceDeciCentsPerLiter: 1689, VATRatePercent: 19},
		},
	}

	assert.True(t, complete.Complete())

	t.Run("unparseable issue date", func(t *testing.T) {
		cp := complete
		cp.IssuedAt = "15.08.2026"
		assert.False(t, cp.Complete())
	})

	t.Run("missing station city", func(t *testing.T) {
		cp := complete
		cp.StationCity = ""
		assert.False(t, cp.Complete())
	})

	t.Run("only invalid lines", func(t *testing.T) {
		cp := complete
		cp.Lines = []Line{{FuelType: "kerosene", QuantityMilliliters: 1, UnitPriceDeciCentsPerLiter: 1}}
		assert.False(t, cp.Complete())
	})

	t.Run("coordinates are optional", func(t *testing.T) {
		assert.Nil(t, complete.Latitude)
		assert.True(t, complete.Complete())
	})
}
