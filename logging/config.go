package logging

import "time"

type Config struct {
	BufferSize      int
	MinimumSeverity Severity
	// CategorySeverity overrides MinimumSeverity for events of a category,
	// e.g. "layout" at debug while everything else stays at warn.
	CategorySeverity map[string]Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
		Console: ConsoleConfig{UseColor: true},
	}
}

// MinimumFor reports the lowest severity admitted for category.
func (c Config) MinimumFor(category string) Severity {
	if severity, ok := c.CategorySeverity[category]; ok {
		return severity
	}
	return c.MinimumSeverity
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
