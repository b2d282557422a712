package takeoff

import (
	"math"
	"strings"

	"planbid/internal/domain"
)

// DefaultConfidence is assigned to items whose provider gave no confidence.
const DefaultConfidence = 0.5

var unitAliases = map[string]domain.Unit{
	"lf": domain.UnitLF, "lin ft": domain.UnitLF, "linear ft": domain.UnitLF, "linear feet": domain.UnitLF,
	"linear foot": domain.UnitLF, "ft": domain.UnitLF, "feet": domain.UnitLF, "foot": domain.UnitLF,
	"sf": domain.UnitSF, "sq ft": domain.UnitSF, "sqft": domain.UnitSF, "square feet": domain.UnitSF,
	"square foot": domain.UnitSF, "ft2": domain.UnitSF, "ft²": domain.UnitSF,
	"cf": domain.UnitCF, "cu ft": domain.UnitCF, "cubic feet": domain.UnitCF, "cubic foot": domain.UnitCF, "ft3": domain.UnitCF,
	"cy": domain.UnitCY, "cu yd": domain.UnitCY, "cubic yards": domain.UnitCY, "cubic yard": domain.UnitCY, "yd3": domain.UnitCY,
	"ea": domain.UnitEA, "each": domain.UnitEA, "count": domain.UnitEA, "pcs": domain.UnitEA, "pc": domain.UnitEA,
	"piece": domain.UnitEA, "pieces": domain.UnitEA, "unit": domain.UnitEA, "units": domain.UnitEA, "no": domain.UnitEA,
	"sq": domain.UnitSQ, "square": domain.UnitSQ, "squares": domain.UnitSQ, "roofing squares": domain.UnitSQ,
}

var categoryAliases = map[string]domain.TakeoffCategory{
	"structure": domain.CategoryStructural, "framing": domain.CategoryStructural, "foundation": domain.CategoryStructural,
	"foundations": domain.CategoryStructural, "concrete": domain.CategoryStructural, "steel": domain.CategoryStructural,
	"masonry": domain.CategoryStructural,
	"roofing": domain.CategoryExterior, "siding": domain.CategoryExterior, "envelope": domain.CategoryExterior,
	"site": domain.CategoryExterior, "sitework": domain.CategoryExterior, "landscaping": domain.CategoryExterior,
	"drywall": domain.CategoryInterior, "partitions": domain.CategoryInterior, "doors": domain.CategoryInterior,
	"millwork": domain.CategoryInterior, "casework": domain.CategoryInterior, "cabinets": domain.CategoryInterior,
	"carpentry": domain.CategoryInterior,
	"mechanical": domain.CategoryMEP, "electrical": domain.CategoryMEP, "plumbing": domain.CategoryMEP,
	"hvac": domain.CategoryMEP, "fire protection": domain.CategoryMEP, "m e p": domain.CategoryMEP,
	"finish": domain.CategoryFinishes, "paint": domain.CategoryFinishes, "painting": domain.CategoryFinishes,
	"flooring": domain.CategoryFinishes, "tile": domain.CategoryFinishes, "ceilings": domain.CategoryFinishes,
	"coatings": domain.CategoryFinishes,
}

func aliasKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(".", "", "/", " ", "-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeUnit maps provider spellings to a canonical unit. Unknown or
// empty units fall back to EA.
func NormalizeUnit(s string) domain.Unit {
	if u := domain.Unit(strings.ToUpper(strings.TrimSpace(s))); domain.ValidUnits[u] {
		return u
	}
	if u, ok := unitAliases[aliasKey(s)]; ok {
		return u
	}
	return domain.UnitEA
}

// NormalizeCategory maps provider spellings to a canonical category.
func NormalizeCategory(s string) domain.TakeoffCategory {
	key := aliasKey(s)
	if c := domain.TakeoffCategory(key); domain.ValidCategories[c] {
		return c
	}
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return domain.CategoryOther
}

// normalizeConfidence accepts fractions or percentages and clamps to [0,1].
func normalizeConfidence(v float64, ok bool) float64 {
	if !ok || math.IsNaN(v) {
		return DefaultConfidence
	}
	if v > 1 && v <= 100 {
		v /= 100
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// normalizeBox clamps a box into the unit square. An all-zero box is a
// template placeholder and is dropped.
func normalizeBox(b *rawBox) *domain.BoundingBox {
	if b == nil {
		return nil
	}
	x, y := clamp01(b.X.Value), clamp01(b.Y.Value)
	w, h := clamp01(b.Width.Value), clamp01(b.Height.Value)
	if x == 0 && y == 0 && w == 0 && h == 0 {
		return nil
	}
	if x+w > 1 {
		w = 1 - x
	}
	if y+h > 1 {
		h = 1 - y
	}
	page := int(b.Page.Value)
	if page < 1 {
		page = 1
	}
	return &domain.BoundingBox{Page: page, X: x, Y: y, Width: w, Height: h}
}

func normalizeItem(r *rawItem) (domain.TakeoffItem, bool) {
	name := strings.TrimSpace(string(r.Name))
	if name == "" {
		return domain.TakeoffItem{}, false
	}
	costCode := strings.TrimSpace(string(r.CostCode))
	if costCode == "" {
		costCode = strings.TrimSpace(string(r.CostCodeCamel))
	}
	box := r.BoundingBox
	if box == nil {
		box = r.BoundingBoxCamel
	}
	qty := r.Quantity.Value
	if qty < 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		qty = 0
	}

	return domain.TakeoffItem{
		Name:        name,
		Description: strings.TrimSpace(string(r.Description)),
		Quantity:    qty,
		Unit:        NormalizeUnit(string(r.Unit)),
		Location:    strings.TrimSpace(string(r.Location)),
		Category:    NormalizeCategory(string(r.Category)),
		Subcategory: strings.TrimSpace(string(r.Subcategory)),
		CostCode:    costCode,
		Notes:       strings.TrimSpace(string(r.Notes)),
		Dimensions:  strings.TrimSpace(string(r.Dimensions)),
		BoundingBox: normalizeBox(box),
		Confidence:  normalizeConfidence(r.Confidence.Value, r.Confidence.Set),
	}, true
}
