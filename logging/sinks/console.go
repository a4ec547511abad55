package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/fatih/color"

	"tab-overlay/server/logging"
)

// ConsoleSink prints one line per event, coloring the severity when enabled.
type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
	palette  map[logging.Severity]*color.Color
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	return &ConsoleSink{
		logger:   log.New(w, "", log.LstdFlags),
		useColor: cfg.UseColor && !color.NoColor,
		palette: map[logging.Severity]*color.Color{
			logging.SeverityDebug: color.New(color.FgHiBlack),
			logging.SeverityInfo:  color.New(color.FgCyan),
			logging.SeverityWarn:  color.New(color.FgYellow, color.Bold),
			logging.SeverityError: color.New(color.FgRed, color.Bold),
		},
	}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] seq=%d actor=%s severity=%s%s%s", event.Type, event.Sequence, formatEntity(event.Actor), s.severity(event.Severity), formatTargets(event.Targets), formatPayload(event.Payload))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func (s *ConsoleSink) severity(sev logging.Severity) string {
	label := sev.String()
	if !s.useColor {
		return label
	}
	if c, ok := s.palette[sev]; ok {
		return c.Sprint(label)
	}
	return label
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return fmt.Sprintf(" targets=%s", strings.Join(parts, ","))
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
