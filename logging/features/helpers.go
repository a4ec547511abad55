package features

import (
	"context"

	"tab-overlay/server/logging"
)

const (
	// EventHandlerFailed is emitted when a feature handler panicked.
	EventHandlerFailed logging.EventType = "features.handler_failed"
	// EventRegistered is emitted when a feature joins the registry.
	EventRegistered logging.EventType = "features.registered"
)

// HandlerFailedPayload describes a recovered handler fault.
type HandlerFailedPayload struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}

// RegisteredPayload describes a feature registration.
type RegisteredPayload struct {
	Capabilities []string `json:"capabilities"`
	Threaded     bool     `json:"threaded,omitempty"`
}

// HandlerFailed publishes an error event attributed to the failing feature.
func HandlerFailed(ctx context.Context, pub logging.Publisher, feature string, payload HandlerFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHandlerFailed,
		Actor:    logging.FeatureRef(feature),
		Severity: logging.SeverityError,
		Category: logging.CategoryFeatures,
		Payload:  payload,
		Extra:    extra,
	})
}

// Registered publishes a debug event for a new registration.
func Registered(ctx context.Context, pub logging.Publisher, feature string, payload RegisteredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRegistered,
		Actor:    logging.FeatureRef(feature),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryFeatures,
		Payload:  payload,
	})
}
