package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// BoundingBox locates an item on a page. All coordinates are normalized to [0,1].
type BoundingBox struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// TakeoffItem is one line item as reported by a single vision provider,
// already normalized to canonical units and categories.
type TakeoffItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    float64         `json:"quantity"`
	Unit        Unit            `json:"unit"`
	Location    string          `json:"location,omitempty"`
	Category    TakeoffCategory `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	CostCode    string          `json:"cost_code,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Dimensions  string          `json:"dimensions,omitempty"`
	BoundingBox *BoundingBox    `json:"bounding_box,omitempty"`
	Confidence  float64         `json:"confidence"`
}

// MergedTakeoffItem is a reconciled item with provenance. Confidence holds
// the aggregated (corroboration-boosted) confidence.
type MergedTakeoffItem struct {
	ID string `json:"id"`
	TakeoffItem
	Sources          []string           `json:"sources"`
	SourceQuantities map[string]float64 `json:"source_quantities"`
	Agreement        int                `json:"agreement"`
}

// MergeMetadata reports how provider lists were reconciled.
type MergeMetadata struct {
	DuplicatesRemoved int               `json:"duplicates_removed"`
	TotalRawItems     int               `json:"total_raw_items"`
	ProviderCounts    map[string]int    `json:"provider_counts"`
	ProviderErrors    map[string]string `json:"provider_errors,omitempty"`
	Corroborated      int               `json:"corroborated"`
	SingleSource      int               `json:"single_source"`
}

// MergedTakeoffResult is the consensus item list of one analysis run.
type MergedTakeoffResult struct {
	Items    []MergedTakeoffItem `json:"items"`
	Metadata MergeMetadata       `json:"metadata"`
}

func (r MergedTakeoffResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *MergedTakeoffResult) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// Annotation is a reviewer note attached to a merged item by index or name.
type Annotation struct {
	ItemIndex *int   `json:"item_index,omitempty"`
	ItemName  string `json:"item_name,omitempty"`
	Note      string `json:"note"`
}

// MissingInformation describes one gap that blocks pricing an item.
type MissingInformation struct {
	ItemID          string      `json:"item_id,omitempty"`
	ItemName        string      `json:"item_name"`
	Category        GapCategory `json:"category"`
	MissingData     string      `json:"missing_data"`
	WhyNeeded       string      `json:"why_needed"`
	WhereToFind     string      `json:"where_to_find"`
	Impact          Impact      `json:"impact"`
	Location        string      `json:"location,omitempty"`
	SuggestedAction string      `json:"suggested_action,omitempty"`
}

// MissingInfoReport is the flat gap list plus its summary.
type MissingInfoReport struct {
	Items         []MissingInformation `json:"items"`
	ByCategory    map[GapCategory]int  `json:"by_category"`
	ByImpact      map[Impact]int       `json:"by_impact"`
	ItemsAffected int                  `json:"items_affected"`
	TotalGaps     int                  `json:"total_gaps"`
}
