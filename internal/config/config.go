// Package config loads the YAML configuration of the tab overlay server.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tab-overlay/server/internal/layout"
	"tab-overlay/server/internal/layout/skin"
	"tab-overlay/server/logging"
)

const (
	// PathEnv overrides the configuration file location.
	PathEnv = "TAB_CONFIG"
	// AddrEnv overrides http.addr.
	AddrEnv = "TAB_ADDR"
	// RefreshEnv overrides refresh-interval.
	RefreshEnv = "TAB_REFRESH_INTERVAL"
	// LogLevelEnv overrides logging.level.
	LogLevelEnv = "TAB_LOG_LEVEL"

	DefaultPath                 = "config.yml"
	DefaultAddr                 = ":8080"
	DefaultRefreshInterval      = 500 * time.Millisecond
	DefaultRemainingPlayersText = "... and %s more"
	DefaultEmptySlotPing        = 1000
)

// ErrNoLayouts is returned when the layout feature is enabled without any
// layout to show.
var ErrNoLayouts = errors.New("config: layout enabled but no layouts defined")

// File mirrors the YAML document.
type File struct {
	Layout          LayoutSection    `yaml:"layout"`
	PingSpoof       PingSpoofSection `yaml:"ping-spoof"`
	RefreshInterval string           `yaml:"refresh-interval"`
	Logging         LoggingSection   `yaml:"logging"`
	HTTP            HTTPSection      `yaml:"http"`
}

type LayoutSection struct {
	Enabled                    bool             `yaml:"enabled"`
	Direction                  string           `yaml:"direction"`
	DefaultSkin                string           `yaml:"default-skin"`
	DefaultSkins               []DefaultSkinDef `yaml:"default-skins"`
	EnableRemainingPlayersText *bool            `yaml:"enable-remaining-players-text"`
	RemainingPlayersText       string           `yaml:"remaining-players-text"`
	EmptySlotPingValue         string           `yaml:"empty-slot-ping-value"`
	HideRealPlayers            bool             `yaml:"hide-real-players"`
	IgnoreEmptySlots           bool             `yaml:"ignore-empty-slots"`
	Layouts                    yaml.Node        `yaml:"layouts"`
}

// DefaultSkinDef assigns a skin to slot ranges such as "1-10".
type DefaultSkinDef struct {
	Slots []string `yaml:"slots"`
	Skin  string   `yaml:"skin"`
}

// LayoutDef is one entry under layout.layouts.
type LayoutDef struct {
	Condition  string    `yaml:"condition"`
	FixedSlots []string  `yaml:"fixed-slots"`
	Groups     yaml.Node `yaml:"groups"`
}

// GroupDef is one entry under layout.layouts.<name>.groups.
type GroupDef struct {
	Condition string   `yaml:"condition"`
	Slots     []string `yaml:"slots"`
}

type PingSpoofSection struct {
	Enabled bool   `yaml:"enabled"`
	Value   string `yaml:"value"`
}

type LoggingSection struct {
	Level      string            `yaml:"level"`
	JSONFile   string            `yaml:"json-file"`
	Color      *bool             `yaml:"color"`
	Categories map[string]string `yaml:"categories"`
}

type HTTPSection struct {
	Addr string `yaml:"addr"`
}

// Diagnostic describes a value that was replaced by its fallback.
type Diagnostic struct {
	Path     string
	Value    string
	Fallback string
	Reason   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s=%q: %s (using %s)", d.Path, d.Value, d.Reason, d.Fallback)
}

// Config is the resolved configuration.
type Config struct {
	Path            string
	LayoutEnabled   bool
	Layout          layout.Config
	PingSpoof       bool
	PingSpoofValue  int
	RefreshInterval time.Duration
	LogLevel        string
	LogJSONFile     string
	LogColor        bool
	// LogCategories overrides LogLevel per event category.
	LogCategories   map[string]logging.Severity
	HTTPAddr        string
	Diagnostics     []Diagnostic
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Layout: layout.Config{
			Direction:                   layout.Columns,
			RemainingPlayersTextEnabled: true,
			RemainingPlayersText:        DefaultRemainingPlayersText,
			EmptySlotPing:               DefaultEmptySlotPing,
		},
		RefreshInterval: DefaultRefreshInterval,
		LogLevel:        "info",
		LogColor:        true,
		HTTPAddr:        DefaultAddr,
	}
}

// Load reads and resolves the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse resolves a YAML document. Invalid values fall back to defaults and
// are listed in Diagnostics; only malformed YAML and an enabled layout
// without layouts fail.
func Parse(data []byte) (*Config, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	r := &resolver{cfg: Default()}
	r.resolve(&file)
	if r.err != nil {
		return nil, r.err
	}
	if r.cfg.LayoutEnabled && len(r.cfg.Layout.Layouts) == 0 {
		return nil, ErrNoLayouts
	}
	return r.cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if raw := getenv(AddrEnv); raw != "" {
		c.HTTPAddr = raw
	}
	if raw := getenv(LogLevelEnv); raw != "" {
		c.LogLevel = raw
	}
	if raw := getenv(RefreshEnv); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			c.RefreshInterval = value
		} else {
			c.Diagnostics = append(c.Diagnostics, Diagnostic{
				Path:     RefreshEnv,
				Value:    raw,
				Fallback: c.RefreshInterval.String(),
				Reason:   "not a positive duration",
			})
		}
	}
}

// PathFromEnv returns TAB_CONFIG or fallback.
func PathFromEnv(getenv func(string) string, fallback string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if raw := strings.TrimSpace(getenv(PathEnv)); raw != "" {
		return raw
	}
	return fallback
}

type resolver struct {
	cfg *Config
	err error
}

func (r *resolver) diagnose(path, value, fallback, reason string) {
	r.cfg.Diagnostics = append(r.cfg.Diagnostics, Diagnostic{Path: path, Value: value, Fallback: fallback, Reason: reason})
}

func (r *resolver) resolve(file *File) {
	cfg := r.cfg
	r.resolveLayout(&file.Layout)

	cfg.PingSpoof = file.PingSpoof.Enabled
	cfg.PingSpoofValue = r.number("ping-spoof.value", file.PingSpoof.Value, 0)

	if raw := strings.TrimSpace(file.RefreshInterval); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			cfg.RefreshInterval = value
		} else {
			r.diagnose("refresh-interval", raw, cfg.RefreshInterval.String(), "not a positive duration")
		}
	}

	if level := strings.TrimSpace(file.Logging.Level); level != "" {
		cfg.LogLevel = level
	}
	cfg.LogJSONFile = strings.TrimSpace(file.Logging.JSONFile)
	if file.Logging.Color != nil {
		cfg.LogColor = *file.Logging.Color
	}
	categories := make([]string, 0, len(file.Logging.Categories))
	for category := range file.Logging.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		level := file.Logging.Categories[category]
		severity, err := logging.ParseSeverity(level)
		if err != nil {
			r.diagnose("logging.categories."+category, level, cfg.LogLevel, "unknown log level")
			continue
		}
		if cfg.LogCategories == nil {
			cfg.LogCategories = make(map[string]logging.Severity)
		}
		cfg.LogCategories[category] = severity
	}
	if addr := strings.TrimSpace(file.HTTP.Addr); addr != "" {
		cfg.HTTPAddr = addr
	}
}

func (r *resolver) resolveLayout(section *LayoutSection) {
	cfg := r.cfg
	out := &cfg.Layout
	cfg.LayoutEnabled = section.Enabled

	if raw := strings.TrimSpace(section.Direction); raw != "" {
		dir, err := layout.ParseDirection(raw)
		if err != nil {
			r.diagnose("layout.direction", raw, layout.Columns.String(), err.Error())
		}
		out.Direction = dir
	}
	out.DefaultSkin = section.DefaultSkin
	for i, def := range section.DefaultSkins {
		for _, raw := range def.Slots {
			from, to, err := parseRange(raw)
			if err != nil {
				r.diagnose(fmt.Sprintf("layout.default-skins[%d].slots", i), raw, "skipped", err.Error())
				continue
			}
			out.DefaultSkins = append(out.DefaultSkins, skin.Range{From: from, To: to, Skin: def.Skin})
		}
	}
	if section.EnableRemainingPlayersText != nil {
		out.RemainingPlayersTextEnabled = *section.EnableRemainingPlayersText
	}
	if section.RemainingPlayersText != "" {
		out.RemainingPlayersText = section.RemainingPlayersText
	}
	out.EmptySlotPing = r.number("layout.empty-slot-ping-value", section.EmptySlotPingValue, DefaultEmptySlotPing)
	out.HideRealPlayers = section.HideRealPlayers
	out.IgnoreEmptySlots = section.IgnoreEmptySlots

	r.eachEntry(&section.Layouts, "layout.layouts", func(name string, node *yaml.Node) {
		var def LayoutDef
		if err := node.Decode(&def); err != nil {
			r.diagnose("layout.layouts."+name, "", "skipped", err.Error())
			return
		}
		out.Layouts = append(out.Layouts, r.layoutDefinition(name, &def))
	})
}

func (r *resolver) layoutDefinition(name string, def *LayoutDef) layout.PatternDefinition {
	path := "layout.layouts." + name
	pattern := layout.PatternDefinition{Name: name, Condition: def.Condition}
	for _, line := range def.FixedSlots {
		fixed, ok := r.fixedSlot(path+".fixed-slots", line)
		if ok {
			pattern.FixedSlots = append(pattern.FixedSlots, fixed)
		}
	}
	r.eachEntry(&def.Groups, path+".groups", func(group string, node *yaml.Node) {
		gpath := path + ".groups." + group
		var g GroupDef
		if err := node.Decode(&g); err != nil {
			r.diagnose(gpath, "", "skipped", err.Error())
			return
		}
		out := layout.GroupDefinition{Name: group, Condition: g.Condition}
		for _, raw := range g.Slots {
			from, to, err := parseRange(raw)
			if err != nil {
				r.diagnose(gpath+".slots", raw, "skipped", err.Error())
				continue
			}
			for slot := from; slot <= to; slot++ {
				out.Slots = append(out.Slots, slot)
			}
		}
		pattern.Groups = append(pattern.Groups, out)
	})
	return pattern
}

// fixedSlot parses "slot|text|skin|ping". Skin and ping are optional.
func (r *resolver) fixedSlot(path, line string) (layout.FixedSlotDefinition, bool) {
	parts := strings.Split(line, "|")
	raw := strings.TrimSpace(parts[0])
	slot, err := strconv.Atoi(raw)
	if err != nil || !layout.ValidSlot(slot) {
		r.diagnose(path, line, "skipped", fmt.Sprintf("slot %q is not a number between 1 and %d", raw, layout.MaxSlots))
		return layout.FixedSlotDefinition{}, false
	}
	def := layout.FixedSlotDefinition{Slot: slot}
	if len(parts) > 1 {
		def.Text = parts[1]
	}
	if len(parts) > 2 {
		def.Skin = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		rawPing := strings.TrimSpace(parts[3])
		if ping, err := strconv.Atoi(rawPing); err == nil {
			def.Ping = &ping
		} else {
			r.diagnose(path, line, "empty slot ping", fmt.Sprintf("ping %q is not a number", rawPing))
		}
	}
	return def, true
}

// eachEntry walks a mapping node in document order.
func (r *resolver) eachEntry(node *yaml.Node, path string, fn func(key string, value *yaml.Node)) {
	if node == nil || node.Kind == 0 {
		return
	}
	if node.Kind != yaml.MappingNode {
		r.diagnose(path, node.Value, "ignored", "expected a mapping")
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn(node.Content[i].Value, node.Content[i+1])
	}
}

func (r *resolver) number(path, raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.diagnose(path, raw, strconv.Itoa(fallback), "not a number")
		return fallback
	}
	return value
}

// parseRange accepts "7" or "1-10".
func parseRange(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	fromRaw, toRaw, isRange := strings.Cut(raw, "-")
	from, err := strconv.Atoi(strings.TrimSpace(fromRaw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid slot %q", fromRaw)
	}
	to := from
	if isRange {
		to, err = strconv.Atoi(strings.TrimSpace(toRaw))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid slot %q", toRaw)
		}
	}
	if from > to || !layout.ValidSlot(from) || !layout.ValidSlot(to) {
		return 0, 0, fmt.Errorf("range %q outside 1-%d", raw, layout.MaxSlots)
	}
	return from, to, nil
}
