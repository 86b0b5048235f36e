package websocket

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StatsSource supplies system-wide counters for the admin stats feed.
type StatsSource func(ctx context.Context) (map[string]interface{}, error)

// RunStats sends system_stats to the admins connected to this hub every
// interval until ctx is done. Connection counts are this instance's own, so
// the event goes through the hub and never through the cross-instance relay.
func RunStats(ctx context.Context, hub *Hub, source StatsSource, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.TopicCount(RoleRoom("admin")) == 0 {
				continue
			}
			stats := map[string]interface{}{}
			if source != nil {
				s, err := source(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("failed to collect system stats")
					continue
				}
				stats = s
			}
			stats["connected_users"] = hub.ClientCount()
			stats["users_by_role"] = hub.RoleCounts()

			ev, err := NewEvent(EventSystemStats, RoleRoom("admin"), stats)
			if err != nil {
				continue
			}
			hub.Broadcast(ev.Topic, ev)
		}
	}
}
