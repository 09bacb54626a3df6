package model

import (
	coremodel "NetGuard/internal/core/model"
)

// EventSink defines a generic interface for publishing engine events to an
// external bus. Publishing is best-effort: a sink failure is logged by the
// caller and never blocks snapshot installation.
type EventSink interface {
	PublishDelta(delta coremodel.Delta) error
	PublishConnectionEvents(port int, events []coremodel.ConnectionEvent) error
	Close()
}
