package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/clearlens/governance-backend/internal/events"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/temporalx"
)

type Clients struct {
	Temporal temporalsdkclient.Client
	Blob     blob.Store
	Bus      events.Bus
}

// wireClients connects the optional externals. Each degrades independently:
// no Redis means no events, no bucket means no artifact metadata, no Temporal
// means job dispatch is unavailable.
func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var bus events.Bus = events.NopBus{}
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := events.NewRedisBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis job bus: %w", err)
		}
		bus = b
	} else {
		log.Warn("REDIS_ADDR not set; job events disabled")
	}

	var store blob.Store
	if strings.TrimSpace(os.Getenv("ARTIFACT_GCS_BUCKET")) != "" {
		s, err := blob.NewGCSStore(ctx, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init object storage: %w", err)
		}
		store = s
	} else {
		log.Warn("ARTIFACT_GCS_BUCKET not set; artifact storage disabled")
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}

	return Clients{
		Temporal: tc,
		Blob:     store,
		Bus:      bus,
	}, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
