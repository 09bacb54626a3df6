package model

import (
	"time"

	coremodel "NetGuard/internal/core/model"
)

// Writer defines a generic interface for writing port snapshots to a
// persistent store.
type Writer interface {
	// Write persists one complete snapshot.
	Write(snapshot *coremodel.Snapshot) error

	// GetInterval returns the configured snapshot interval for this writer.
	GetInterval() time.Duration
}
