package takeoff

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"planbid/internal/domain"
)

// MergeOptions are the fuzzy-match thresholds of the merge engine.
type MergeOptions struct {
	// NameSimilarity is the minimum name/description similarity for a match.
	NameSimilarity float64
	// BoxIoU is the minimum overlap for two boxes to be the same region.
	BoxIoU float64
	// BoxCenterDistance is the maximum center distance for nearby boxes.
	BoxCenterDistance float64
	// CorroborationBoost is added per extra corroborating provider.
	CorroborationBoost float64
	// MaxConfidence caps boosted confidence.
	MaxConfidence float64
}

// DefaultMergeOptions returns the tuned defaults.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		NameSimilarity:     0.6,
		BoxIoU:             0.1,
		BoxCenterDistance:  0.15,
		CorroborationBoost: 0.15,
		MaxConfidence:      0.99,
	}
}

// ProviderItems is one provider's normalized item list.
type ProviderItems struct {
	Provider string
	Items    []domain.TakeoffItem
	Err      string
}

// Merger reconciles provider item lists into one consensus list.
type Merger struct {
	opts MergeOptions
}

// NewMerger creates a Merger. Zero-valued options take their defaults.
func NewMerger(opts MergeOptions) *Merger {
	def := DefaultMergeOptions()
	if opts.NameSimilarity <= 0 {
		opts.NameSimilarity = def.NameSimilarity
	}
	if opts.BoxIoU <= 0 {
		opts.BoxIoU = def.BoxIoU
	}
	if opts.BoxCenterDistance <= 0 {
		opts.BoxCenterDistance = def.BoxCenterDistance
	}
	if opts.CorroborationBoost <= 0 {
		opts.CorroborationBoost = def.CorroborationBoost
	}
	if opts.MaxConfidence <= 0 || opts.MaxConfidence > 1 {
		opts.MaxConfidence = def.MaxConfidence
	}
	return &Merger{opts: opts}
}

// Options returns the effective options.
func (m *Merger) Options() MergeOptions { return m.opts }

type entry struct {
	provider string
	item     domain.TakeoffItem
}

type cluster struct {
	members []entry // highest confidence first
}

func (c *cluster) providers() map[string]bool {
	set := make(map[string]bool, len(c.members))
	for _, e := range c.members {
		set[e.provider] = true
	}
	return set
}

// Duplicate reports whether two items from different providers describe the
// same real-world item, and their text similarity. Quantities are ignored.
func (m *Merger) Duplicate(a, b domain.TakeoffItem) (bool, float64) {
	if a.Unit != b.Unit || a.Category != b.Category {
		return false, 0
	}
	sim := itemSimilarity(a, b)
	if sim < m.opts.NameSimilarity {
		return false, sim
	}
	if !m.locationCompatible(a, b) {
		return false, sim
	}
	return true, sim
}

func (m *Merger) locationCompatible(a, b domain.TakeoffItem) bool {
	if a.BoundingBox != nil && b.BoundingBox != nil {
		ba, bb := *a.BoundingBox, *b.BoundingBox
		if ba.Page != bb.Page {
			return false
		}
		return IoU(ba, bb) >= m.opts.BoxIoU || CenterDistance(ba, bb) <= m.opts.BoxCenterDistance
	}
	la, lb := normalizeForMatch(a.Location), normalizeForMatch(b.Location)
	return la == "" || lb == "" || la == lb
}

// Merge reconciles provider lists. It never fails: empty input yields an
// empty item list with zero duplicates removed.
func (m *Merger) Merge(lists []ProviderItems) domain.MergedTakeoffResult {
	meta := domain.MergeMetadata{
		ProviderCounts: make(map[string]int, len(lists)),
		ProviderErrors: map[string]string{},
	}

	var entries []entry
	for _, l := range lists {
		meta.ProviderCounts[l.Provider] += len(l.Items)
		meta.TotalRawItems += len(l.Items)
		if l.Err != "" {
			meta.ProviderErrors[l.Provider] = l.Err
		}
		for _, it := range l.Items {
			entries = append(entries, entry{provider: l.Provider, item: it})
		}
	}
	if len(meta.ProviderErrors) == 0 {
		meta.ProviderErrors = nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].item.Confidence > entries[j].item.Confidence
	})

	clusters := m.consolidate(m.cluster(entries))

	items := make([]domain.MergedTakeoffItem, 0, len(clusters))
	for _, c := range clusters {
		items = append(items, m.resolve(c))
	}
	sortMerged(items)
	for i := range items {
		items[i].ID = fmt.Sprintf("item-%03d", i+1)
		if items[i].Agreement > 1 {
			meta.Corroborated++
		} else {
			meta.SingleSource++
		}
	}
	meta.DuplicatesRemoved = meta.TotalRawItems - len(items)

	return domain.MergedTakeoffResult{Items: items, Metadata: meta}
}

// cluster assigns entries greedily, highest confidence first, to the best
// scoring cluster that lacks the entry's provider and whose every member
// matches it.
func (m *Merger) cluster(entries []entry) []*cluster {
	var clusters []*cluster
	for _, e := range entries {
		best, bestScore := -1, -1.0
		for ci, c := range clusters {
			if c.providers()[e.provider] {
				continue
			}
			score, ok := m.fits(e.item, c)
			if ok && score > bestScore {
				best, bestScore = ci, score
			}
		}
		if best >= 0 {
			clusters[best].members = append(clusters[best].members, e)
			continue
		}
		clusters = append(clusters, &cluster{members: []entry{e}})
	}
	return clusters
}

func (m *Merger) fits(item domain.TakeoffItem, c *cluster) (float64, bool) {
	total := 0.0
	for _, member := range c.members {
		ok, sim := m.Duplicate(item, member.item)
		if !ok {
			return 0, false
		}
		total += sim
	}
	return total / float64(len(c.members)), true
}

// consolidate merges clusters whose resolved items still satisfy the
// duplicate predicate, so no two output items are duplicates of each other.
func (m *Merger) consolidate(clusters []*cluster) []*cluster {
	for {
		merged := false
	scan:
		for i := 0; i < len(clusters); i++ {
			ri := m.resolve(clusters[i])
			pi := clusters[i].providers()
			for j := i + 1; j < len(clusters); j++ {
				if overlaps(pi, clusters[j].providers()) {
					continue
				}
				rj := m.resolve(clusters[j])
				if ok, _ := m.Duplicate(ri.TakeoffItem, rj.TakeoffItem); !ok {
					continue
				}
				clusters[i].members = append(clusters[i].members, clusters[j].members...)
				sort.SliceStable(clusters[i].members, func(a, b int) bool {
					return clusters[i].members[a].item.Confidence > clusters[i].members[b].item.Confidence
				})
				clusters = append(clusters[:j], clusters[j+1:]...)
				merged = true
				break scan
			}
		}
		if !merged {
			return clusters
		}
	}
}

func overlaps(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// resolve collapses a cluster into one merged item.
func (m *Merger) resolve(c *cluster) domain.MergedTakeoffItem {
	rep := c.members[0].item
	out := domain.MergedTakeoffItem{
		TakeoffItem:      rep,
		Sources:          make([]string, 0, len(c.members)),
		SourceQuantities: make(map[string]float64, len(c.members)),
		Agreement:        len(c.members),
	}

	var categories, subcategories, costCodes, notes, dims []string
	confs := make([]float64, 0, len(c.members))
	for _, e := range c.members {
		out.Sources = append(out.Sources, e.provider)
		out.SourceQuantities[e.provider] = e.item.Quantity
		confs = append(confs, e.item.Confidence)
		categories = append(categories, string(e.item.Category))
		subcategories = append(subcategories, e.item.Subcategory)
		costCodes = append(costCodes, e.item.CostCode)
		notes = append(notes, e.item.Notes)
		dims = append(dims, e.item.Dimensions)
		if out.Description == "" {
			out.Description = e.item.Description
		}
		if out.Location == "" {
			out.Location = e.item.Location
		}
		if out.BoundingBox == nil && e.item.BoundingBox != nil {
			box := *e.item.BoundingBox
			out.BoundingBox = &box
		}
	}

	out.Quantity = reconcileQuantity(c.members)
	if cat := pickSpecific(categories, confs); cat != "" {
		out.Category = domain.TakeoffCategory(cat)
	} else {
		out.Category = domain.CategoryOther
	}
	out.Subcategory = pickSpecific(subcategories, confs)
	out.CostCode = pickSpecific(costCodes, confs)
	out.Notes = joinUnique(notes)
	out.Dimensions = joinUnique(dims)

	if n := len(c.members); n > 1 {
		ceiling := math.Max(m.opts.MaxConfidence, rep.Confidence)
		out.Confidence = math.Min(rep.Confidence+m.opts.CorroborationBoost*float64(n-1), ceiling)
	}
	return out
}

// reconcileQuantity resists a single outlier: the median for three or more
// values, a confidence-weighted mean for two. Zero quantities are ignored
// when any provider measured a non-zero value.
func reconcileQuantity(members []entry) float64 {
	var vals, weights []float64
	for _, e := range members {
		if e.item.Quantity > 0 {
			vals = append(vals, e.item.Quantity)
			weights = append(weights, e.item.Confidence)
		}
	}
	switch len(vals) {
	case 0:
		return 0
	case 1:
		return vals[0]
	case 2:
		wsum := weights[0] + weights[1]
		if wsum <= 0 {
			return (vals[0] + vals[1]) / 2
		}
		return (vals[0]*weights[0] + vals[1]*weights[1]) / wsum
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// pickSpecific prefers non-empty, non-"other" values. Ties between specific
// values go to the majority, then to the most confident supporter. With no
// specific value, the first non-empty value (possibly "other") is returned.
func pickSpecific(values []string, confs []float64) string {
	type tally struct {
		value   string
		count   int
		maxConf float64
		order   int
	}
	tallies := map[string]*tally{}
	fallback := ""
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if fallback == "" {
			fallback = v
		}
		key := strings.ToLower(v)
		if key == string(domain.CategoryOther) {
			continue
		}
		t, ok := tallies[key]
		if !ok {
			t = &tally{value: v, order: len(tallies)}
			tallies[key] = t
		}
		t.count++
		if confs[i] > t.maxConf {
			t.maxConf = confs[i]
		}
	}
	if len(tallies) == 0 {
		return fallback
	}

	var best *tally
	for _, t := range tallies {
		switch {
		case best == nil,
			t.count > best.count,
			t.count == best.count && t.maxConf > best.maxConf,
			t.count == best.count && t.maxConf == best.maxConf && t.order < best.order:
			best = t
		}
	}
	return best.value
}

// joinUnique concatenates free-text fragments, dropping repeats.
func joinUnique(values []string) string {
	seen := map[string]bool{}
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(v, ";") {
			p = strings.TrimSpace(p)
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "; ")
}

// sortMerged orders items by page, then top-to-bottom, left-to-right, then
// name. Items without a box sort last.
func sortMerged(items []domain.MergedTakeoffItem) {
	pos := func(it domain.MergedTakeoffItem) (int, float64, float64) {
		if it.BoundingBox == nil {
			return math.MaxInt, 0, 0
		}
		return it.BoundingBox.Page, it.BoundingBox.Y, it.BoundingBox.X
	}
	sort.SliceStable(items, func(i, j int) bool {
		pi, yi, xi := pos(items[i])
		pj, yj, xj := pos(items[j])
		if pi != pj {
			return pi < pj
		}
		if yi != yj {
			return yi < yj
		}
		if xi != xj {
			return xi < xj
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}
