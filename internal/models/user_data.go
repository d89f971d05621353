package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// UserData is the single row kept per user. Everything the user ever
// uploaded or analysed lives inside Data as one JSON document.
type UserData struct {
	UserID    string         `gorm:"type:text;primaryKey" json:"user_id"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"data"`
	CreatedAt time.Time      `gorm:"type:timestamptz;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;default:now()" json:"updated_at"`
}

func (UserData) TableName() string {
	return "user_data"
}

// UserRecord is the decoded form of UserData.Data.
type UserRecord struct {
	Files           []FileRecord     `json:"files"`
	Caches          []CacheRecord    `json:"caches"`
	AnalysisResults []AnalysisRecord `json:"analysis_results"`
	BatchJobs       []BatchJobRecord `json:"batch_jobs"`
}

type FileRecord struct {
	ID              int     `json:"id"`
	Filename        string  `json:"filename"`
	FilePath        string  `json:"file_path"`
	FileType        string  `json:"file_type"`
	MimeType        string  `json:"mime_type"`
	GeminiFileID    *string `json:"gemini_file_id"`
	UploadTimestamp string  `json:"upload_timestamp"`
}

type CacheRecord struct {
	ID           int    `json:"id"`
	CacheName    string `json:"cache_name"`
	DisplayName  string `json:"display_name"`
	JDFileID     int    `json:"jd_file_id"`
	ResumeFileID int    `json:"resume_file_id"`
	TTL          int    `json:"ttl"`
	CreatedAt    string `json:"created_at"`

	JDFilename     string `json:"jd_filename,omitempty"`
	ResumeFilename string `json:"resume_filename,omitempty"`
}

type AnalysisRecord struct {
	ID             int         `json:"id"`
	CacheID        int         `json:"cache_id"`
	JDFileID       int         `json:"jd_file_id"`
	ResumeFileID   int         `json:"resume_file_id"`
	Kind           OutcomeKind `json:"kind,omitempty"`
	ResultJSON     string      `json:"result_json"`
	Score          *float64    `json:"score"`
	Recommendation *string     `json:"recommendation"`
	ProcessedAt    string      `json:"processed_at"`

	JDFilename     string `json:"jd_filename,omitempty"`
	ResumeFilename string `json:"resume_filename,omitempty"`
}

// BatchJobState values for BatchJobRecord.JobState.
const (
	BatchStateRunning = "RUNNING"
	BatchStateDone    = "DONE"
)

type BatchJobRecord struct {
	ID          int     `json:"id"`
	JobName     string  `json:"job_name"`
	JobState    string  `json:"job_state"`
	NumRequests int     `json:"num_requests"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at"`
}

// DecodeUserRecord parses the stored blob. An empty blob is an empty record.
func DecodeUserRecord(raw []byte) (*UserRecord, error) {
	rec := &UserRecord{}
	if len(raw) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	return rec, nil
}

// Encode serialises the record back into the blob format.
func (r *UserRecord) Encode() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user data: %w", err)
	}
	return b, nil
}

// Ids are local to each list: max existing id + 1.

func (r *UserRecord) NextFileID() int {
	next := 0
	for _, f := range r.Files {
		next = max(next, f.ID)
	}
	return next + 1
}

func (r *UserRecord) NextCacheID() int {
	next := 0
	for _, c := range r.Caches {
		next = max(next, c.ID)
	}
	return next + 1
}

func (r *UserRecord) NextAnalysisID() int {
	next := 0
	for _, a := range r.AnalysisResults {
		next = max(next, a.ID)
	}
	return next + 1
}

func (r *UserRecord) NextBatchJobID() int {
	next := 0
	for _, b := range r.BatchJobs {
		next = max(next, b.ID)
	}
	return next + 1
}

// FileByID returns the file record with the given id, if present.
func (r *UserRecord) FileByID(id int) (FileRecord, bool) {
	for _, f := range r.Files {
		if f.ID == id {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Timestamp formats t the way every record timestamp is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
