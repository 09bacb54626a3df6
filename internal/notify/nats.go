package notify

import (
	"encoding/json"
	"fmt"
	"log"

	"NetGuard/internal/config"
	coremodel "NetGuard/internal/core/model"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes engine events to NATS subjects as JSON. Snapshot
// deltas go to "<prefix>.deltas", monitor observations to
// "<prefix>.monitor.<port>".
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to the configured NATS server.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "netguard"
	}
	return &NATSSink{nc: nc, prefix: prefix}, nil
}

// PublishDelta publishes the add/remove delta of one snapshot install.
// Empty deltas are skipped.
func (s *NATSSink) PublishDelta(delta coremodel.Delta) error {
	if len(delta.Added) == 0 && len(delta.Removed) == 0 {
		return nil
	}
	data, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.prefix+".deltas", data)
}

// PublishConnectionEvents publishes one monitor tick's connection set.
func (s *NATSSink) PublishConnectionEvents(port int, events []coremodel.ConnectionEvent) error {
	if len(events) == 0 {
		return nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return s.nc.Publish(fmt.Sprintf("%s.monitor.%d", s.prefix, port), data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
