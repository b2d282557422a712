// Package missinginfo flags merged takeoff items that cannot be priced as-is.
package missinginfo

import (
	"fmt"
	"regexp"
	"strings"

	"planbid/internal/domain"
)

// HedgePhrases are note fragments that signal an unresolved specification.
var HedgePhrases = []string{
	"grade not specified",
	"type unclear",
	"type not specified",
	"specification missing",
	"spec missing",
	"unspecified",
	"material unknown",
	"unknown material",
	"to be determined",
	"verify spec",
}

// specRe matches text that already pins down a material standard or grade.
var specRe = regexp.MustCompile(`(?i)\b\d+\s*(?:psi|ksi|mpa)\b|\bastm\b|\bgrade\s+[a-z]*\d+|\b\d+\s*(?:ga|gauge)\b|\btype\s+[a-z0-9]{1,3}\b|#\d+\b|\br-\d+`)

// markerRe matches an inline gap marker written by an upstream analysis step:
// ⚠️ MISSING: … WHY NEEDED: … WHERE TO FIND: … IMPACT: …
var markerRe = regexp.MustCompile(`(?is)(?:⚠️|⚠)?\s*MISSING:\s*(.*?)\s*WHY NEEDED:\s*(.*?)\s*WHERE TO FIND:\s*(.*?)\s*IMPACT:\s*([A-Za-z]+)`)

type dimensionNeed struct {
	name   string
	impact domain.Impact
}

// Analyze derives the gap report for items, scanning annotation notes
// exactly like item notes.
func Analyze(items []domain.MergedTakeoffItem, annotations []domain.Annotation) domain.MissingInfoReport {
	extraNotes := attachAnnotations(items, annotations)

	var gaps []domain.MissingInformation
	affected := map[int]bool{}
	for i := range items {
		itemGaps := analyzeItem(&items[i], extraNotes[i])
		if len(itemGaps) > 0 {
			affected[i] = true
		}
		gaps = append(gaps, itemGaps...)
	}
	return buildReport(gaps, len(affected))
}

func buildReport(gaps []domain.MissingInformation, affected int) domain.MissingInfoReport {
	report := domain.MissingInfoReport{
		Items:         gaps,
		ByCategory:    map[domain.GapCategory]int{},
		ByImpact:      map[domain.Impact]int{},
		ItemsAffected: affected,
		TotalGaps:     len(gaps),
	}
	if report.Items == nil {
		report.Items = []domain.MissingInformation{}
	}
	for _, g := range gaps {
		report.ByCategory[g.Category]++
		report.ByImpact[g.Impact]++
	}
	return report
}

// attachAnnotations returns the annotation notes per item index. An
// annotation targets ItemIndex when set, otherwise every item whose name
// matches ItemName case-insensitively.
func attachAnnotations(items []domain.MergedTakeoffItem, annotations []domain.Annotation) map[int][]string {
	out := map[int][]string{}
	for _, a := range annotations {
		if strings.TrimSpace(a.Note) == "" {
			continue
		}
		if a.ItemIndex != nil {
			if idx := *a.ItemIndex; idx >= 0 && idx < len(items) {
				out[idx] = append(out[idx], a.Note)
			}
			continue
		}
		name := strings.TrimSpace(a.ItemName)
		if name == "" {
			continue
		}
		for i := range items {
			if strings.EqualFold(items[i].Name, name) {
				out[i] = append(out[i], a.Note)
			}
		}
	}
	return out
}

func analyzeItem(item *domain.MergedTakeoffItem, annotationNotes []string) []domain.MissingInformation {
	var gaps []domain.MissingInformation
	newGap := func(cat domain.GapCategory, missing, why, where string, impact domain.Impact, action string) domain.MissingInformation {
		return domain.MissingInformation{
			ItemID:          item.ID,
			ItemName:        item.Name,
			Category:        cat,
			MissingData:     missing,
			WhyNeeded:       why,
			WhereToFind:     where,
			Impact:          impact,
			Location:        item.Location,
			SuggestedAction: action,
		}
	}

	if item.Quantity <= 0 {
		if item.Unit == domain.UnitEA {
			gaps = append(gaps, newGap(domain.GapQuantity, "Count",
				"Item is priced per each; the count is required",
				"Plan view, schedules, or legend on the referenced sheet",
				domain.ImpactHigh,
				fmt.Sprintf("Count every %s shown on the plans", item.Name)))
		} else if !hasUsableDimensions(item.Dimensions) {
			for _, need := range dimensionsFor(item.Unit) {
				gaps = append(gaps, newGap(domain.GapMeasurement, need.name,
					fmt.Sprintf("%s is required to compute the %s quantity", need.name, item.Unit),
					"Dimension strings on the plan, sections, or details",
					need.impact,
					fmt.Sprintf("Measure the %s of %s", strings.ToLower(need.name), item.Name)))
			}
		}
	}

	notes := append([]string{item.Notes}, annotationNotes...)
	allNotes := strings.Join(notes, "\n")

	// Marker text is reported as its own gap, never as a hedge.
	if !hasSpecification(item) {
		if phrase, ok := findHedge(markerRe.ReplaceAllString(allNotes, " ")); ok {
			gaps = append(gaps, newGap(domain.GapSpecification, "Material specification",
				fmt.Sprintf("Notes indicate %q; pricing depends on the exact material", phrase),
				"Specifications book, general notes, or finish schedule",
				domain.ImpactMedium,
				"Confirm the material grade or type with the architect"))
		}
	}

	for _, m := range parseMarkers(allNotes) {
		g := newGap(domain.GapOther, m.missing, m.why, m.where, domain.ParseImpact(m.impact), "")
		gaps = append(gaps, g)
	}
	return gaps
}

// dimensionsFor lists the measurements a unit needs to compute a quantity.
func dimensionsFor(u domain.Unit) []dimensionNeed {
	switch {
	case u.IsArea():
		return []dimensionNeed{{"Length", domain.ImpactCritical}, {"Width", domain.ImpactCritical}}
	case u.IsVolume():
		return []dimensionNeed{
			{"Length", domain.ImpactCritical},
			{"Width", domain.ImpactCritical},
			{"Height", domain.ImpactCritical},
		}
	case u == domain.UnitLF:
		return []dimensionNeed{{"Length", domain.ImpactHigh}}
	default:
		return nil
	}
}

var digitRe = regexp.MustCompile(`\d`)

// hasUsableDimensions reports whether a dimension string carries at least
// one number; placeholders like "N/A" or "unknown" do not count.
func hasUsableDimensions(dims string) bool {
	d := strings.TrimSpace(dims)
	if d == "" {
		return false
	}
	return digitRe.MatchString(d)
}

func hasSpecification(item *domain.MergedTakeoffItem) bool {
	if strings.TrimSpace(item.CostCode) != "" {
		return true
	}
	return specRe.MatchString(item.Name + " " + item.Description + " " + item.Subcategory)
}

func findHedge(notes string) (string, bool) {
	lower := strings.ToLower(notes)
	for _, p := range HedgePhrases {
		if containsPhrase(lower, p) {
			return p, true
		}
	}
	return "", false
}

// containsPhrase matches p only at word boundaries.
func containsPhrase(s, p string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], p)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(p)
		if (idx == 0 || !isWordByte(s[idx-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

type marker struct {
	missing, why, where, impact string
}

func parseMarkers(notes string) []marker {
	var out []marker
	for _, m := range markerRe.FindAllStringSubmatch(notes, -1) {
		out = append(out, marker{
			missing: trimMarkerField(m[1]),
			why:     trimMarkerField(m[2]),
			where:   trimMarkerField(m[3]),
			impact:  m[4],
		})
	}
	return out
}

func trimMarkerField(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".;,")
}
