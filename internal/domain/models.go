package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanDocument is an uploaded construction plan set. It is owned by the
// surrounding application and never mutated by ingestion.
type PlanDocument struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ProjectID     *uuid.UUID `db:"project_id" json:"project_id,omitempty"`
	FileName      string     `db:"file_name" json:"file_name"`
	StorageBucket string     `db:"storage_bucket" json:"storage_bucket"`
	StorageKey    string     `db:"storage_key" json:"storage_key"`
	PageCount     int        `db:"page_count" json:"page_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// SheetMetadata describes one labeled drawing within a plan set.
type SheetMetadata struct {
	PlanID     uuid.UUID `db:"plan_id" json:"-"`
	PageNo     int       `db:"page_no" json:"page_no"`
	SheetID    *string   `db:"sheet_id" json:"sheet_id,omitempty"`
	Title      *string   `db:"title" json:"title,omitempty"`
	Discipline *string   `db:"discipline" json:"discipline,omitempty"`
	SheetType  *string   `db:"sheet_type" json:"sheet_type,omitempty"`
}

// TextItem is a run of text with its position on the page.
type TextItem struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"font_size"`
}

// PageText is the text recovered from one page, 1-indexed.
type PageText struct {
	PageNumber int        `json:"page_number"`
	Text       string     `json:"text"`
	TextItems  []TextItem `json:"text_items,omitempty"`
}

// PageImage is a rasterized plan page handed to the vision backends. Either
// Data is inline or Bucket/Key point at an object in storage.
type PageImage struct {
	Page        int    `json:"page"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
	Key         string `json:"key,omitempty"`
}

// ChunkMetadata is stored as JSONB alongside each chunk.
type ChunkMetadata struct {
	ChunkPageIndex  int    `json:"chunk_page_index"`
	TotalPages      int    `json:"total_pages"`
	SheetID         string `json:"sheet_id,omitempty"`
	SheetTitle      string `json:"sheet_title,omitempty"`
	SheetDiscipline string `json:"sheet_discipline,omitempty"`
	SheetType       string `json:"sheet_type,omitempty"`
	ChunkIndex      int    `json:"chunk_index"`
	CharacterCount  int    `json:"character_count"`
}

func (m ChunkMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ChunkMetadata) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// EmbeddingDimensions is the fixed length of every stored chunk embedding.
const EmbeddingDimensions = 1536

// TextChunk is a bounded slice of page text with its embedding.
type TextChunk struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	PlanID      uuid.UUID     `db:"plan_id" json:"plan_id"`
	PageNumber  *int          `db:"page_number" json:"page_number"`
	SnippetText string        `db:"snippet_text" json:"snippet_text"`
	Metadata    ChunkMetadata `db:"metadata" json:"metadata"`
	Embedding   []float32     `db:"-" json:"-"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// ScoredChunk is a chunk returned by similarity search.
type ScoredChunk struct {
	TextChunk
	Similarity float64 `db:"similarity" json:"similarity"`
}

// StringList is a []string persisted as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, (*[]string)(l))
}

// Job is a queued unit of background work against one plan.
type Job struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	PlanID     uuid.UUID       `db:"plan_id" json:"plan_id"`
	Kind       JobKind         `db:"kind" json:"kind"`
	Status     JobStatus       `db:"status" json:"status"`
	Attempts   int             `db:"attempts" json:"attempts"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	Result     json.RawMessage `db:"result" json:"result,omitempty"`
	Error      string          `db:"error" json:"error,omitempty"`
	Warnings   StringList      `db:"warnings" json:"warnings"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
	StartedAt  *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}

// TakeoffJobPayload is the payload of a takeoff job.
type TakeoffJobPayload struct {
	Images       []PageImage `json:"images"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	UserPrompt   string      `json:"user_prompt,omitempty"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	PlanID     uuid.UUID `json:"plan_id"`
	ChunkCount int       `json:"chunk_count"`
	PageCount  int       `json:"page_count"`
	UsedOCR    bool      `json:"used_ocr"`
	Warnings   []string  `json:"warnings"`
}

// TakeoffRun is the persisted merged result of one takeoff analysis.
type TakeoffRun struct {
	ID         uuid.UUID           `db:"id" json:"id"`
	PlanID     uuid.UUID           `db:"plan_id" json:"plan_id"`
	JobID      *uuid.UUID          `db:"job_id" json:"job_id,omitempty"`
	Result     MergedTakeoffResult `db:"result" json:"result"`
	ModelsUsed StringList          `db:"models_used" json:"models_used"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
