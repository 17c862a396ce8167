// Package repository persists the judgeboard document to disk and loads it
// back, migrating older layouts on the way in.
package repository

import (
	"context"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Source names where a loaded document came from.
type Source string

const (
	SourceEnhanced Source = "enhanced"
	SourcePrimary  Source = "primary"
	SourceDefaults Source = "defaults"
)

// Loaded is the result of a load. Fallback is set when nothing usable was
// on disk and the default dataset was returned instead.
type Loaded struct {
	Document model.Document
	Source   Source
	Fallback bool
	// Reason holds the error that forced the fallback, if any.
	Reason error
}

// Store reads and writes the persisted document.
type Store interface {
	// Save writes doc durably. A failed save leaves the previous files intact.
	Save(ctx context.Context, doc model.Document) error

	// Load never fails: unreadable or missing data yields the default
	// dataset with Fallback set.
	Load(ctx context.Context) Loaded
}
