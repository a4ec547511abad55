package layout

import (
	"context"

	"tab-overlay/server/logging"
)

const (
	// EventPatternSwitched is emitted when a viewer's governing layout changes.
	EventPatternSwitched logging.EventType = "layout.pattern_switched"
	// EventConfigDiagnostic is emitted when a layout setting fell back to its default.
	EventConfigDiagnostic logging.EventType = "layout.config_diagnostic"
)

// PatternSwitchedPayload names the previous and the new layout. Empty means none.
type PatternSwitchedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Forced bool   `json:"forced,omitempty"`
}

// ConfigDiagnosticPayload explains a rejected configuration value.
type ConfigDiagnosticPayload struct {
	Path     string `json:"path"`
	Value    string `json:"value"`
	Fallback string `json:"fallback"`
	Reason   string `json:"reason"`
}

// PatternSwitched publishes a layout switch for a viewer.
func PatternSwitched(ctx context.Context, pub logging.Publisher, viewer logging.EntityRef, payload PatternSwitchedPayload) {
	if pub == nil {
		return
	}
	targets := []logging.EntityRef(nil)
	if payload.To != "" {
		targets = append(targets, logging.EntityRef{ID: payload.To, Kind: logging.EntityKindLayout})
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPatternSwitched,
		Actor:    viewer,
		Targets:  targets,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLayout,
		Payload:  payload,
	})
}

// ConfigDiagnostic publishes a warning about a configuration fallback.
func ConfigDiagnostic(ctx context.Context, pub logging.Publisher, payload ConfigDiagnosticPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConfigDiagnostic,
		Actor:    logging.EntityRef{ID: payload.Path, Kind: logging.EntityKindSystem},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLayout,
		Payload:  payload,
	})
}
