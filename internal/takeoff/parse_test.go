package takeoff_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/takeoff"
)

func TestParseItems_ItemsEnvelopeNormalizesFields(t *testing.T) {
	raw := "```json\n" + `{"items": [
		{
			"name": "Slab on grade",
			"quantity": "1,200 SF",
			"unit": "sq ft",
			"category": "Concrete",
			"cost_code": 33,
			"notes": ["4 in. thick", "WWF"],
			"bounding_box": {"page": 2, "x": 0.9, "y": 0.1, "width": 0.3, "height": 0.2},
			"confidence": 85
		},
		{"name": "Door", "quantity": 4}
	]}` + "\n```"

	res, err := takeoff.ParseItems(raw)
	require.NoError(t, err)
	assert.Equal(t, "items", res.Shape)
	assert.False(t, res.Salvaged())
	assert.Equal(t, 0, res.Rejected)
	require.Len(t, res.Items, 2)

	slab := res.Items[0]
	assert.Equal(t, 1200.0, slab.Quantity)
	assert.Equal(t, domain.UnitSF, slab.Unit)
	assert.Equal(t, domain.CategoryStructural, slab.Category)
	assert.Equal(t, "33", slab.CostCode)
	assert.Equal(t, "4 in. thick; WWF", slab.Notes)
	assert.InDelta(t, 0.85, slab.Confidence, 1e-9)
	require.NotNil(t, slab.BoundingBox)
	assert.Equal(t, 2, slab.BoundingBox.Page)
	assert.InDelta(t, 0.1, slab.BoundingBox.Width, 1e-9)

	door := res.Items[1]
	assert.Equal(t, domain.UnitEA, door.Unit)
	assert.Equal(t, domain.CategoryOther, door.Category)
	assert.Equal(t, takeoff.DefaultConfidence, door.Confidence)
	assert.Nil(t, door.BoundingBox)
}

func TestParseItems_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		shape string
	}{
		{"nested takeoff", `{"takeoff": {"items": [{"name": "Stud wall"}]}}`, "takeoff.items"},
		{"line items", `{"line_items": [{"name": "Stud wall"}]}`, "line_items"},
		{"bare array with prose", "Here is the takeoff:\n[{\"name\": \"Stud wall\"}]\nLet me know.", "array"},
		{"single object", `{"name": "Stud wall", "quantity": 3}`, "item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := takeoff.ParseItems(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, res.Shape)
			require.Len(t, res.Items, 1)
			assert.Equal(t, "Stud wall", res.Items[0].Name)
		})
	}
}

func TestParseItems_RejectsInvalidObjects(t *testing.T) {
	res, err := takeoff.ParseItems(`{"items": [{"name": ""}, {"quantity": 5}, {"name": "Footing", "quantity": 12, "unit": "CY"}]}`)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Rejected)
	require.Len(t, res.Items, 1)
	assert.Equal(t, domain.UnitCY, res.Items[0].Unit)
}

func TestParseItems_EmptyList(t *testing.T) {
	res, err := takeoff.ParseItems(`{"items": []}`)

	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestParseItems_SalvagesTruncatedResponse(t *testing.T) {
	raw := `{"items":[{"name":"Footing","quantity":12,"unit":"CY"},{"name":"Rebar","quantity":`

	res, err := takeoff.ParseItems(raw)

	require.NoError(t, err)
	assert.True(t, res.Salvaged())
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Footing", res.Items[0].Name)
	assert.Equal(t, 12.0, res.Items[0].Quantity)
}

func TestParseItems_NothingRecoverable(t *testing.T) {
	res, err := takeoff.ParseItems("I could not read the drawing.")

	require.Error(t, err)
	assert.True(t, errors.Is(err, takeoff.ErrNoItems))
	require.NotNil(t, res)
	assert.Empty(t, res.Items)
}

func TestSalvageItems(t *testing.T) {
	text := `noise [{"name":"A","bounding_box":{"x":0.1}}, {"foo":1}, {"name":"brace } in \"string\""}, {"name":"B"`

	got := takeoff.SalvageItems(text)

	require.Len(t, got, 2)
	assert.JSONEq(t, `{"name":"A","bounding_box":{"x":0.1}}`, string(got[0]))
	assert.JSONEq(t, `{"name":"brace } in \"string\""}`, string(got[1]))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, takeoff.StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, takeoff.StripFences("  {\"a\":1}  "))
}

func TestNormalizeUnit(t *testing.T) {
	tests := map[string]domain.Unit{
		"SF":          domain.UnitSF,
		"Linear Feet": domain.UnitLF,
		"cu. yd.":     domain.UnitCY,
		"ft3":         domain.UnitCF,
		"squares":     domain.UnitSQ,
		"pcs":         domain.UnitEA,
		"":            domain.UnitEA,
		"furlongs":    domain.UnitEA,
	}
	for in, want := range tests {
		assert.Equal(t, want, takeoff.NormalizeUnit(in), in)
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, domain.CategoryMEP, takeoff.NormalizeCategory("HVAC"))
	assert.Equal(t, domain.CategoryInterior, takeoff.NormalizeCategory("Drywall"))
	assert.Equal(t, domain.CategoryFinishes, takeoff.NormalizeCategory("finishes"))
	assert.Equal(t, domain.CategoryOther, takeoff.NormalizeCategory("misc stuff"))
}
