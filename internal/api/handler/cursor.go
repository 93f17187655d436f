package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/storage"
)

// DecodeJobCursor parses the opaque cursor a job list page handed out
func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.JobCursor{
		CreatedAt: time.Unix(0, createdAt),
		JobUUID:   decodedParts[1],
	}, nil
}

// EncodeJobCursor renders the position after cursor's row as an opaque
// string
func EncodeJobCursor(cursor *storage.JobCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobUUID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
