package domain

import "errors"

// Job kinds, one per asynchronous provider call
const (
	JobKindDetect           = "detect"
	JobKindVoiceDesign      = "voice_design"
	JobKindVoiceCloneCreate = "voice_clone_create"
	JobKindVoiceCloneBuild  = "voice_clone_build"
)

// Job statuses. Transitions only move forward:
// queued -> running -> succeeded | failed
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

var (
	// ErrNotFound is returned when a row is absent or not owned by the
	// caller. Both cases map to the same error so existence never leaks.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned on registration with a duplicate email
	ErrEmailTaken = errors.New("email already registered")
)
