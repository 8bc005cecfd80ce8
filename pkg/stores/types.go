package stores

import (
	"context"
	"time"
)

// ResolutionStatus represents the status of a resolution run
type ResolutionStatus string

const (
	ResolutionStatusPending   ResolutionStatus = "pending"
	ResolutionStatusRunning   ResolutionStatus = "running"
	ResolutionStatusCompleted ResolutionStatus = "completed"
	ResolutionStatusFailed    ResolutionStatus = "failed"
)

// Resolution represents one recorded resolution run
type Resolution struct {
	ID               string           `json:"id"`
	Root             string           `json:"root"`
	Requested        string           `json:"requested"` // JSON array of feature names
	Status           ResolutionStatus `json:"status"`
	FeaturesResolved int              `json:"features_resolved"`
	Directives       string           `json:"directives"` // JSON blob
	Warnings         string           `json:"warnings"`   // JSON blob
	Error            *string          `json:"error,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Store defines the persistence interface for resolution history
type Store interface {
	// Init initializes the store's connection
	Init(ctx context.Context) error

	// Close closes the store
	Close() error

	// Migrate applies pending schema migrations
	Migrate(ctx context.Context) error

	// CreateResolution records a new resolution run
	CreateResolution(ctx context.Context, res *Resolution) error

	// GetResolution retrieves a resolution by ID
	GetResolution(ctx context.Context, id string) (*Resolution, error)

	// UpdateResolutionStatus transitions a resolution's status. Terminal
	// statuses set the completion timestamp.
	UpdateResolutionStatus(ctx context.Context, id string, status ResolutionStatus, errMsg *string) error

	// ListResolutions lists resolutions with pagination, newest first
	ListResolutions(ctx context.Context, limit, offset int) ([]*Resolution, error)

	// DeleteResolution deletes a resolution by ID
	DeleteResolution(ctx context.Context, id string) error

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
