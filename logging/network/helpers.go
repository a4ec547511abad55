package network

import (
	"context"

	"tab-overlay/server/logging"
)

const (
	// EventViewerConnected is emitted when a websocket viewer attached.
	EventViewerConnected logging.EventType = "network.viewer_connected"
	// EventWriteFailed is emitted when a mutation could not be delivered.
	EventWriteFailed logging.EventType = "network.write_failed"
)

// ViewerConnectedPayload describes the connection.
type ViewerConnectedPayload struct {
	RemoteAddr string `json:"remoteAddr"`
}

// WriteFailedPayload captures why a frame was lost.
type WriteFailedPayload struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// ViewerConnected publishes a debug event for a new websocket viewer.
func ViewerConnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ViewerConnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventViewerConnected,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// WriteFailed publishes a warning when a frame could not be written.
func WriteFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload WriteFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWriteFailed,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
