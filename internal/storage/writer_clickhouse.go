package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"NetGuard/internal/config"
	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS port_snapshots (
    Timestamp   DateTime,
    Seq         UInt64,
    Port        UInt16,
    PID         Nullable(Int32),
    ProcessName String,
    LocalAddr   String,
    RemoteAddr  String,
    State       String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Port, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse,
// recording every persisted snapshot's entries as rows in port_snapshots.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, interval: interval}, nil
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write inserts one snapshot's entries into the port_snapshots table.
func (w *ClickHouseWriter) Write(snapshot *coremodel.Snapshot) error {
	if len(snapshot.Entries) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO port_snapshots")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range snapshot.Entries {
		var pid interface{}
		if e.PID > 0 {
			pid = e.PID
		}
		err = batch.Append(
			snapshot.Taken,
			snapshot.Seq,
			uint16(e.Port),
			pid,
			e.ProcessName,
			e.LocalAddr,
			e.RemoteAddr,
			e.State,
		)
		if err != nil {
			return fmt.Errorf("failed to append entry to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d port entries to ClickHouse for snapshot %d", len(snapshot.Entries), snapshot.Seq)
	return nil
}
