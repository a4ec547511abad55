package lifecycle

import (
	"context"

	"tab-overlay/server/logging"
)

const (
	// EventPlayerJoined is emitted once join handlers ran for a player.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerQuit is emitted once quit handlers ran for a player.
	EventPlayerQuit logging.EventType = "lifecycle.player_quit"
	// EventReloaded is emitted after the feature set was rebuilt from config.
	EventReloaded logging.EventType = "lifecycle.reloaded"
)

// PlayerJoinedPayload captures what the joining player starts with.
type PlayerJoinedPayload struct {
	Online  int    `json:"online"`
	SortKey string `json:"sortKey"`
	Layout  string `json:"layout,omitempty"`
}

// PlayerQuitPayload captures the reason a player left.
type PlayerQuitPayload struct {
	Reason string `json:"reason"`
	Online int    `json:"online"`
}

// ReloadedPayload lists the features active after a reload.
type ReloadedPayload struct {
	Features []string `json:"features"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerQuit publishes a player quit event.
func PlayerQuit(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PlayerQuitPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerQuit,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// Reloaded publishes a configuration reload event.
func Reloaded(ctx context.Context, pub logging.Publisher, payload ReloadedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReloaded,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSystem},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
