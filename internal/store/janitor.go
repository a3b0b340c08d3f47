package store

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// StartJanitor sweeps sessions idle for longer than ttl on the given cron
// schedule (e.g. "@every 5m"). Stop the returned cron to end sweeping.
func StartJanitor(st Store, schedule string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n := st.Sweep(time.Now().Add(-ttl))
		if n > 0 {
			log.Info().Int("swept", n).Int("live", st.Len()).Msg("idle sessions removed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
