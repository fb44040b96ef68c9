package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrGenerationInProgress = errors.New("generation already in progress")
	ErrPromptRequired       = errors.New("prompt is required")
)
