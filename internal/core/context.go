// Package core holds the collaborators shared by every feature.
package core

import (
	"tab-overlay/server/internal/condition"
	"tab-overlay/server/internal/feature"
	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/property"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
)

// Visibility decides whether viewer may see target in dynamic groups.
type Visibility interface {
	CanSee(viewer, target *player.Player) bool
}

// VisibilityFunc adapts a function into a Visibility.
type VisibilityFunc func(viewer, target *player.Player) bool

func (f VisibilityFunc) CanSee(viewer, target *player.Player) bool {
	if f == nil {
		return true
	}
	return f(viewer, target)
}

// DefaultVisibility hides vanished players from everyone but themselves.
var DefaultVisibility Visibility = VisibilityFunc(func(viewer, target *player.Player) bool {
	if target == nil {
		return false
	}
	return !target.Vanished() || viewer == target
})

// Context is passed to every component at construction in place of global
// state.
type Context struct {
	Features   *feature.Manager
	Players    *player.Registry
	Conditions *condition.Registry
	Visibility Visibility
	Resolver   property.Resolver
	Logger     telemetry.Logger
	Publisher  logging.Publisher
}

// New builds a context around a fresh feature manager, filling nil
// collaborators with permissive defaults.
func New(c Context) *Context {
	if c.Players == nil {
		c.Players = player.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = telemetry.LoggerFunc(nil)
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	if c.Conditions == nil {
		c.Conditions = condition.NewRegistry()
	}
	if c.Visibility == nil {
		c.Visibility = DefaultVisibility
	}
	if c.Resolver == nil {
		c.Resolver = property.Identity
	}
	if c.Features == nil {
		c.Features = feature.NewManager(feature.Config{
			Players:   c.Players,
			Logger:    c.Logger,
			Publisher: c.Publisher,
		})
	}
	return &c
}

// CanSee consults the configured visibility.
func (c *Context) CanSee(viewer, target *player.Player) bool {
	if c == nil || c.Visibility == nil {
		return DefaultVisibility.CanSee(viewer, target)
	}
	return c.Visibility.CanSee(viewer, target)
}
