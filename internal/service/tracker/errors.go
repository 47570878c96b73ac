package tracker

import (
	"errors"

	"github.com/ignite/spark-tracker/internal/domain"
)

// Sentinel errors for the tracker service layer.
var (
	ErrNotFound          = errors.New("spark not found")
	ErrConflict          = errors.New("spark version conflict")
	ErrExpired           = errors.New("spark expired")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidEvent      = domain.ErrInvalidEvent
)
