package domain

import "strings"

// Unit is the measurement unit of a takeoff line item.
type Unit string

const (
	UnitLF Unit = "LF" // linear feet
	UnitSF Unit = "SF" // square feet
	UnitCF Unit = "CF" // cubic feet
	UnitCY Unit = "CY" // cubic yards
	UnitEA Unit = "EA" // each (count)
	UnitSQ Unit = "SQ" // roofing square (100 SF)
)

// ValidUnits lists every unit a takeoff item may carry.
var ValidUnits = map[Unit]bool{
	UnitLF: true,
	UnitSF: true,
	UnitCF: true,
	UnitCY: true,
	UnitEA: true,
	UnitSQ: true,
}

// IsArea reports whether the unit measures an area.
func (u Unit) IsArea() bool {
	return u == UnitSF || u == UnitSQ
}

// IsVolume reports whether the unit measures a volume.
func (u Unit) IsVolume() bool {
	return u == UnitCF || u == UnitCY
}

// TakeoffCategory is the trade bucket a takeoff item belongs to.
type TakeoffCategory string

const (
	CategoryStructural TakeoffCategory = "structural"
	CategoryExterior   TakeoffCategory = "exterior"
	CategoryInterior   TakeoffCategory = "interior"
	CategoryMEP        TakeoffCategory = "mep"
	CategoryFinishes   TakeoffCategory = "finishes"
	CategoryOther      TakeoffCategory = "other"
)

// ValidCategories lists every category a takeoff item may carry.
var ValidCategories = map[TakeoffCategory]bool{
	CategoryStructural: true,
	CategoryExterior:   true,
	CategoryInterior:   true,
	CategoryMEP:        true,
	CategoryFinishes:   true,
	CategoryOther:      true,
}

// GapCategory classifies a missing-information record.
type GapCategory string

const (
	GapMeasurement   GapCategory = "measurement"
	GapQuantity      GapCategory = "quantity"
	GapSpecification GapCategory = "specification"
	GapDetail        GapCategory = "detail"
	GapOther         GapCategory = "other"
)

// Impact is the severity of a missing-information record.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactHigh     Impact = "high"
	ImpactMedium   Impact = "medium"
	ImpactLow      Impact = "low"
)

// ParseImpact maps free text to an Impact. Unknown values map to medium.
func ParseImpact(s string) Impact {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, imp := range []Impact{ImpactCritical, ImpactHigh, ImpactMedium, ImpactLow} {
		if strings.HasPrefix(s, string(imp)) {
			return imp
		}
	}
	return ImpactMedium
}

// JobKind identifies the work a queued job performs.
type JobKind string

const (
	JobKindIngest  JobKind = "ingest"
	JobKindTakeoff JobKind = "takeoff"
)

// JobStatus tracks the lifecycle of a queued job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestStage names a step of the ingestion pipeline, used in StageError.
type IngestStage string

const (
	StageDownload   IngestStage = "download"
	StageExtraction IngestStage = "extraction"
	StageEmbedding  IngestStage = "embedding"
	StageStorage    IngestStage = "storage"
)

// ExportFormat selects the takeoff export encoding.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)
