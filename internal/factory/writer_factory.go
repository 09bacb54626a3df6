package factory

import (
	"fmt"
	"log"
	"time"

	"NetGuard/internal/config"
	"NetGuard/internal/model"
	"NetGuard/internal/storage"
)

// Writers builds the enabled snapshot writers from the config. Disabled
// definitions are skipped; an unknown type is an error.
func Writers(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}

		interval, err := time.ParseDuration(def.Interval)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("invalid interval %q for writer type '%s'", def.Interval, def.Type)
		}

		switch def.Type {
		case "text":
			writers = append(writers, storage.NewTextWriter(def.RootPath, interval))
		case "clickhouse":
			w, err := storage.NewClickHouseWriter(def.ClickHouse, interval)
			if err != nil {
				return nil, fmt.Errorf("error creating clickhouse writer: %w", err)
			}
			writers = append(writers, w)
		default:
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		log.Printf("Created snapshot writer of type '%s' with interval %s", def.Type, interval)
	}

	return writers, nil
}
