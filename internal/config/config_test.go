package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab-overlay/server/internal/layout"
	"tab-overlay/server/internal/layout/skin"
	"tab-overlay/server/logging"
)

const sample = `
layout:
  enabled: true
  direction: ROWS
  default-skin: "texture:base"
  default-skins:
    - slots: ["1-10", "15"]
      skin: "texture:red"
  remaining-players-text: "+%s"
  empty-slot-ping-value: 250
  hide-real-players: true
  ignore-empty-slots: true
  layouts:
    staff:
      condition: "group:admin"
      fixed-slots:
        - "1|&lStaff"
        - "2|Online: %online%|player:Notch|5"
      groups:
        admins:
          condition: "group:admin"
          slots: ["3-5"]
    default:
      groups:
        everyone:
          slots: ["1-20", 40]
ping-spoof:
  enabled: true
  value: 42
refresh-interval: 2s
logging:
  level: debug
  json-file: /tmp/events.jsonl
  color: false
  categories:
    layout: warn
http:
  addr: ":9090"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sample)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, path, cfg.Path)
	assert.True(t, cfg.LayoutEnabled)
	assert.Equal(t, layout.Rows, cfg.Layout.Direction)
	assert.Equal(t, "texture:base", cfg.Layout.DefaultSkin)
	assert.Equal(t, []skin.Range{
		{From: 1, To: 10, Skin: "texture:red"},
		{From: 15, To: 15, Skin: "texture:red"},
	}, cfg.Layout.DefaultSkins)
	assert.True(t, cfg.Layout.RemainingPlayersTextEnabled)
	assert.Equal(t, "+%s", cfg.Layout.RemainingPlayersText)
	assert.Equal(t, 250, cfg.Layout.EmptySlotPing)
	assert.True(t, cfg.Layout.HideRealPlayers)
	assert.True(t, cfg.Layout.IgnoreEmptySlots)

	assert.True(t, cfg.PingSpoof)
	assert.Equal(t, 42, cfg.PingSpoofValue)
	assert.Equal(t, 2*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/events.jsonl", cfg.LogJSONFile)
	assert.False(t, cfg.LogColor)
	assert.Equal(t, map[string]logging.Severity{"layout": logging.SeverityWarn}, cfg.LogCategories)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Empty(t, cfg.Diagnostics)
}

func TestLoadKeepsLayoutOrder(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, cfg.Layout.Layouts, 2)
	staff := cfg.Layout.Layouts[0]
	assert.Equal(t, "staff", staff.Name)
	assert.Equal(t, "group:admin", staff.Condition)
	require.Len(t, staff.FixedSlots, 2)
	assert.Equal(t, layout.FixedSlotDefinition{Slot: 1, Text: "&lStaff"}, staff.FixedSlots[0])

	second := staff.FixedSlots[1]
	assert.Equal(t, 2, second.Slot)
	assert.Equal(t, "Online: %online%", second.Text)
	assert.Equal(t, "player:Notch", second.Skin)
	require.NotNil(t, second.Ping)
	assert.Equal(t, 5, *second.Ping)

	require.Len(t, staff.Groups, 1)
	assert.Equal(t, layout.GroupDefinition{Name: "admins", Condition: "group:admin", Slots: []int{3, 4, 5}}, staff.Groups[0])

	def := cfg.Layout.Layouts[1]
	assert.Equal(t, "default", def.Name)
	require.Len(t, def.Groups, 1)
	assert.Len(t, def.Groups[0].Slots, 21)
	assert.Equal(t, 40, def.Groups[0].Slots[20])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Parse([]byte("layout:\n  enabled: false\n"))
	require.NoError(t, err)

	assert.False(t, cfg.LayoutEnabled)
	assert.Equal(t, layout.Columns, cfg.Layout.Direction)
	assert.True(t, cfg.Layout.RemainingPlayersTextEnabled)
	assert.Equal(t, DefaultRemainingPlayersText, cfg.Layout.RemainingPlayersText)
	assert.Equal(t, DefaultEmptySlotPing, cfg.Layout.EmptySlotPing)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, DefaultAddr, cfg.HTTPAddr)
	assert.True(t, cfg.LogColor)
	assert.Empty(t, cfg.Layout.Layouts)
}

func TestInvalidValuesFallBack(t *testing.T) {
	content := `
layout:
  enabled: true
  direction: diagonal
  empty-slot-ping-value: fast
  layouts:
    main:
      fixed-slots:
        - "99|out of range"
        - "x|not a number"
        - "4|ok||slow"
      groups:
        all:
          slots: ["10-5", "70-90", "1-2"]
ping-spoof:
  value: lots
refresh-interval: never
logging:
  categories:
    layout: loud
`
	cfg, err := Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, layout.Columns, cfg.Layout.Direction)
	assert.Equal(t, DefaultEmptySlotPing, cfg.Layout.EmptySlotPing)
	assert.Equal(t, 0, cfg.PingSpoofValue)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)

	require.Len(t, cfg.Layout.Layouts, 1)
	main := cfg.Layout.Layouts[0]
	require.Len(t, main.FixedSlots, 1)
	assert.Equal(t, 4, main.FixedSlots[0].Slot)
	assert.Nil(t, main.FixedSlots[0].Ping)
	require.Len(t, main.Groups, 1)
	assert.Equal(t, []int{1, 2}, main.Groups[0].Slots)

	paths := make([]string, 0, len(cfg.Diagnostics))
	for _, d := range cfg.Diagnostics {
		paths = append(paths, d.Path)
	}
	assert.Contains(t, paths, "layout.direction")
	assert.Contains(t, paths, "layout.empty-slot-ping-value")
	assert.Contains(t, paths, "layout.layouts.main.fixed-slots")
	assert.Contains(t, paths, "layout.layouts.main.groups.all.slots")
	assert.Contains(t, paths, "ping-spoof.value")
	assert.Contains(t, paths, "refresh-interval")
	assert.Contains(t, paths, "logging.categories.layout")
	assert.Empty(t, cfg.LogCategories)
	assert.Len(t, cfg.Diagnostics, 10)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "layout: [unclosed")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("enabled without layouts", func(t *testing.T) {
		path := writeConfig(t, "layout:\n  enabled: true\n")
		_, err := Load(path)
		require.ErrorIs(t, err, ErrNoLayouts)
	})

	t.Run("layouts not a mapping", func(t *testing.T) {
		cfg, err := Parse([]byte("layout:\n  layouts: [a, b]\n"))
		require.NoError(t, err)
		require.Len(t, cfg.Diagnostics, 1)
		assert.Equal(t, "layout.layouts", cfg.Diagnostics[0].Path)
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		AddrEnv:     ":7000",
		LogLevelEnv: "warn",
		RefreshEnv:  "250ms",
	}
	cfg := Default()
	cfg.ApplyEnv(func(key string) string { return env[key] })

	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.RefreshInterval)

	env[RefreshEnv] = "-1s"
	cfg.ApplyEnv(func(key string) string { return env[key] })
	assert.Equal(t, 250*time.Millisecond, cfg.RefreshInterval)
	require.Len(t, cfg.Diagnostics, 1)
	assert.Equal(t, RefreshEnv, cfg.Diagnostics[0].Path)
}

func TestPathFromEnv(t *testing.T) {
	assert.Equal(t, DefaultPath, PathFromEnv(func(string) string { return "" }, DefaultPath))
	assert.Equal(t, "/etc/tab.yml", PathFromEnv(func(string) string { return " /etc/tab.yml " }, DefaultPath))
}
