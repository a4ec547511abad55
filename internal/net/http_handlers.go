package net

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/google/uuid"

	"tab-overlay/server/internal/hub"
	"tab-overlay/server/internal/layout"
	"tab-overlay/server/internal/net/ws"
	"tab-overlay/server/internal/observability"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
)

type HTTPHandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// Stats reports the logging router counters, when there is a router.
	Stats func() logging.RouterStats

	// Observability mounts the pprof endpoints when EnablePprof is set.
	Observability observability.Config
}

type layoutRequest struct {
	Player string `json:"player"`
	Layout string `json:"layout"`
}

// NewHTTPHandler serves health, diagnostics, layout overrides and the
// websocket endpoint.
func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			Hub        hub.Diagnostics      `json:"hub"`
			Logging    *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Hub:        h.DiagnosticsSnapshot(),
		}
		if cfg.Stats != nil {
			stats := cfg.Stats()
			payload.Logging = &stats
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/layout", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req layoutRequest
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		id, err := uuid.Parse(req.Player)
		if err != nil {
			httpError(w, "invalid player", nethttp.StatusBadRequest)
			return
		}
		p := h.Player(id)
		if p == nil {
			httpError(w, "unknown player", nethttp.StatusNotFound)
			return
		}
		m := h.Layout()
		if m == nil {
			httpError(w, layout.ErrNotActive.Error(), nethttp.StatusConflict)
			return
		}
		if req.Layout == "" {
			err = m.ResetLayout(p)
		} else {
			pattern := m.Pattern(req.Layout)
			if pattern == nil {
				httpError(w, "unknown layout", nethttp.StatusNotFound)
				return
			}
			err = m.SendLayout(p, pattern)
		}
		if errors.Is(err, layout.ErrNotActive) {
			httpError(w, err.Error(), nethttp.StatusConflict)
			return
		}
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		shown := ""
		if view := m.View(p); view != nil {
			shown = view.Pattern().Name()
		}
		writeJSON(w, logger, nethttp.StatusOK, map[string]string{"player": id.String(), "layout": shown})
	})

	wsHandler := ws.NewHandler(h, ws.HandlerConfig{Logger: logger, Publisher: cfg.Publisher})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.Observability.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
