package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap stores an opaque key/value payload in a JSONB column
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// User is an account in the system
type User struct {
	ID           int64          `db:"id"`
	Email        string         `db:"email"`
	Name         string         `db:"name"`
	PasswordHash string         `db:"password_hash"`
	IsActive     bool           `db:"is_active"`
	IsStaff      bool           `db:"is_staff"`
	Verified     bool           `db:"verified"`
	LastLogin    sql.NullTime   `db:"last_login"`
	CreatedAt    time.Time      `db:"created_at"`
}

// Upload is a stored media file that provider jobs reference by URL
type Upload struct {
	UUID         string    `db:"uuid"`
	UserID       int64     `db:"user_id"`
	StoragePath  string    `db:"storage_path"`
	OriginalName string    `db:"original_name"`
	ContentType  string    `db:"content_type"`
	SizeBytes    int64     `db:"size_bytes"`
	SHA256       string    `db:"sha256"`
	CreatedAt    time.Time `db:"created_at"`
}

// Job tracks one asynchronous provider call from submission to
// terminal outcome
type Job struct {
	UUID                string         `db:"uuid"`
	UserID              int64          `db:"user_id"`
	Kind                string         `db:"kind"`
	UploadUUID          sql.NullString `db:"upload_uuid"`
	Status              string         `db:"status"`
	WorkerTaskID        string         `db:"worker_task_id"`
	RemoteCorrelationID string         `db:"remote_correlation_id"`
	RequestPayload      JSONMap        `db:"request_payload"`
	RemoteResponse      JSONMap        `db:"remote_response"`
	ErrorMessage        string         `db:"error_message"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// Terminal reports whether the job reached a final state
func (j *Job) Terminal() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}
