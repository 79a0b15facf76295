// Package bus implements the outbound message-bus side of §6: a Redis
// pub/sub publisher for the synchronizer's change notifications. The
// teacher has no equivalent subsystem (the market maker has no change
// bus); this package is grounded instead on the pack's own go-redis/v9
// users (other_examples' redis.Client-backed services) for client
// construction and on
// original_source/src/data/cache_entries_synchronizer.py's
// publish_sync_notifications for the message shapes and channel names.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tickstock-core/internal/sync"
)

// Channel names (§6 outbound message bus publications).
const (
	ChannelSyncComplete     = "tickstock.cache.sync_complete"
	ChannelUniverseUpdated  = "tickstock.universe.updated"
	ChannelIPOAssignment    = "tickstock.cache.ipo_assignment"
	ChannelDelistingCleanup = "tickstock.cache.delisting_cleanup"
)

const serviceName = "cache_entries_synchronizer"

// Config controls the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Publisher publishes synchronizer notifications on named Redis
// channels. Implements internal/sync.Publisher.
type Publisher struct {
	client *redis.Client
}

// New constructs a Publisher from a connection Config.
func New(cfg Config) *Publisher {
	return &Publisher{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Close releases the underlying Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// envelope is the JSON-compatible message shape every publication
// shares (§6): {timestamp, service, event_type, ...payload}.
func envelope(eventType string, payload map[string]any) map[string]any {
	msg := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    serviceName,
		"event_type": eventType,
	}
	for k, v := range payload {
		msg[k] = v
	}
	return msg
}

// PublishSyncComplete publishes the aggregate synchronization result,
// grounded on publish_sync_notifications's sync_message.
func (p *Publisher) PublishSyncComplete(ctx context.Context, result sync.Result) error {
	taskSummary := make(map[string]string, len(result.TaskResults))
	for _, tr := range result.TaskResults {
		taskSummary[tr.Name] = tr.Status
	}

	changes := flattenChanges(result.TaskResults)
	msg := envelope("daily_sync_complete", map[string]any{
		"total_changes":    result.TotalChanges,
		"task_summary":     taskSummary,
		"changes_by_type":  changeSummary(changes),
		"within_window":    result.WithinWindow,
		"duration_seconds": result.Duration.Seconds(),
	})
	return p.publishJSON(ctx, ChannelSyncComplete, msg)
}

// PublishUniverseUpdated publishes a per-universe change summary,
// grounded on publish_sync_notifications's universe_message.
func (p *Publisher) PublishUniverseUpdated(ctx context.Context, universe string, changes []sync.Change) error {
	actions := make([]string, len(changes))
	for i, c := range changes {
		actions[i] = string(c.Action)
	}
	msg := envelope("universe_synchronized", map[string]any{
		"universe":     universe,
		"change_count": len(changes),
		"actions":      actions,
	})
	return p.publishJSON(ctx, ChannelUniverseUpdated, msg)
}

// PublishIPOAssignment publishes one entry on the optional IPO-detail
// stream (§6: ipo_assignment). Unlike PublishSyncComplete/
// PublishUniverseUpdated, this channel is not required by
// internal/sync.Publisher — it's an auxiliary detail feed a subscriber
// can opt into instead of filtering the aggregate stream.
func (p *Publisher) PublishIPOAssignment(ctx context.Context, change sync.Change) error {
	msg := envelope("ipo_assignment", map[string]any{
		"universe": change.Universe,
		"symbol":   change.Symbol,
		"reason":   change.Reason,
		"metadata": change.Metadata,
	})
	return p.publishJSON(ctx, ChannelIPOAssignment, msg)
}

// PublishDelistingCleanup publishes one entry on the optional
// delisting-detail stream (§6: delisting_cleanup).
func (p *Publisher) PublishDelistingCleanup(ctx context.Context, change sync.Change) error {
	msg := envelope("delisting_cleanup", map[string]any{
		"universe": change.Universe,
		"symbol":   change.Symbol,
		"reason":   change.Reason,
	})
	return p.publishJSON(ctx, ChannelDelistingCleanup, msg)
}

func (p *Publisher) publishJSON(ctx context.Context, channel string, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func flattenChanges(results []sync.TaskResult) []sync.Change {
	var out []sync.Change
	for _, r := range results {
		out = append(out, r.Changes...)
	}
	return out
}

// changeSummary mirrors generate_change_summary: counts by type,
// action, and universe, plus the most active universe.
func changeSummary(changes []sync.Change) map[string]any {
	if len(changes) == 0 {
		return map[string]any{}
	}

	byType := map[string]int{}
	byAction := map[string]int{}
	byUniverse := map[string]int{}
	for _, c := range changes {
		byType[c.Type]++
		byAction[string(c.Action)]++
		byUniverse[c.Universe]++
	}

	var mostActive string
	var mostActiveCount int
	for u, n := range byUniverse {
		if n > mostActiveCount {
			mostActive, mostActiveCount = u, n
		}
	}

	return map[string]any{
		"total_changes":        len(changes),
		"by_type":              byType,
		"by_action":            byAction,
		"by_universe":          byUniverse,
		"most_active_universe": mostActive,
	}
}
