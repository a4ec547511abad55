package observability

import (
	"strconv"

	"tab-overlay/server/internal/telemetry"
)

// PprofEnv enables the /debug/pprof endpoints when set to a true value.
const PprofEnv = "TAB_ENABLE_PPROF"

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// FromEnv overlays the environment onto cfg. Unparseable values are logged and
// ignored.
func FromEnv(cfg Config, getenv func(string) string, logger telemetry.Logger) Config {
	if raw := getenv(PprofEnv); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnablePprof = value
		} else if logger != nil {
			logger.Printf("invalid %s=%q: %v", PprofEnv, raw, err)
		}
	}
	return cfg
}
