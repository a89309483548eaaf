package devices

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// Source enumerates connected devices. Implemented by hwio.HTTPPort.
type Source interface {
	Devices(ctx context.Context) ([]Identity, error)
}

// Poll enumerates src every interval and publishes into f when the set
// changes. Failed enumerations keep the previous snapshot. Returns when ctx
// is done.
func Poll(ctx context.Context, src Source, f *Feed, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []Identity
	failing := false

	poll := func() {
		ids, err := src.Devices(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !failing {
				log.Warn().Err(err).Msg("Device enumeration failed")
				failing = true
			}
			return
		}
		if failing {
			log.Info().Msg("Device enumeration recovered")
			failing = false
		}
		if last != nil && slices.Equal(ids, last) {
			return
		}
		last = append([]Identity{}, ids...)
		f.Publish(ids)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
