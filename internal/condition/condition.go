// Package condition evaluates named display conditions against players.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tab-overlay/server/internal/player"
)

// Condition is a pure predicate over a player.
type Condition interface {
	Name() string
	IsMet(p *player.Player) bool
}

// Met reports whether c holds for p. A missing condition always holds.
func Met(c Condition, p *player.Player) bool {
	if c == nil {
		return true
	}
	return c.IsMet(p)
}

type funcCondition struct {
	name string
	fn   func(*player.Player) bool
}

func (c funcCondition) Name() string { return c.name }

func (c funcCondition) IsMet(p *player.Player) bool {
	if c.fn == nil {
		return true
	}
	return c.fn(p)
}

// Func wraps a predicate under a name.
func Func(name string, fn func(*player.Player) bool) Condition {
	return funcCondition{name: name, fn: fn}
}

type all struct {
	name  string
	parts []Condition
}

func (c all) Name() string { return c.name }

func (c all) IsMet(p *player.Player) bool {
	for _, part := range c.parts {
		if !Met(part, p) {
			return false
		}
	}
	return true
}

type anyOf struct {
	name  string
	parts []Condition
}

func (c anyOf) Name() string { return c.name }

func (c anyOf) IsMet(p *player.Player) bool {
	if len(c.parts) == 0 {
		return true
	}
	for _, part := range c.parts {
		if Met(part, p) {
			return true
		}
	}
	return false
}

// And holds when every part holds.
func And(parts ...Condition) Condition {
	return all{name: joinNames(parts, ";"), parts: parts}
}

// Or holds when at least one part holds.
func Or(parts ...Condition) Condition {
	return anyOf{name: joinNames(parts, "|"), parts: parts}
}

// Not negates c.
func Not(c Condition) Condition {
	name := "!"
	if c != nil {
		name += c.Name()
	}
	return Func(name, func(p *player.Player) bool { return !Met(c, p) })
}

func joinNames(parts []Condition, sep string) string {
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != nil {
			names = append(names, part.Name())
		}
	}
	return strings.Join(names, sep)
}

// Registry resolves condition expressions. Registered names are checked
// before the built-in attribute conditions.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Condition
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Condition)}
}

// Register stores c under its name, replacing any previous definition.
func (r *Registry) Register(c Condition) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.byName[c.Name()] = c
	r.mu.Unlock()
}

// Get returns a registered condition or nil.
func (r *Registry) Get(name string) Condition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Parse compiles an expression. "a;b" requires both, "a|b" either, and a
// leading "!" negates one term. Terms are registered names or built-ins:
// "vanished", "world:<name>", "server:<name>", "group:<name>",
// "gamemode:<n>". An empty expression yields nil, which always holds.
func (r *Registry) Parse(expr string) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if c := r.Get(expr); c != nil {
		return c, nil
	}
	if strings.Contains(expr, ";") {
		parts, err := r.parseParts(strings.Split(expr, ";"))
		if err != nil {
			return nil, err
		}
		return all{name: expr, parts: parts}, nil
	}
	if strings.Contains(expr, "|") {
		parts, err := r.parseParts(strings.Split(expr, "|"))
		if err != nil {
			return nil, err
		}
		return anyOf{name: expr, parts: parts}, nil
	}
	if strings.HasPrefix(expr, "!") {
		inner, err := r.Parse(expr[1:])
		if err != nil {
			return nil, err
		}
		return Func(expr, func(p *player.Player) bool { return !Met(inner, p) }), nil
	}
	return r.builtin(expr)
}

func (r *Registry) parseParts(raw []string) ([]Condition, error) {
	parts := make([]Condition, 0, len(raw))
	for _, term := range raw {
		c, err := r.Parse(term)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	return parts, nil
}

func (r *Registry) builtin(term string) (Condition, error) {
	if c := r.Get(term); c != nil {
		return c, nil
	}
	if term == "vanished" {
		return Func(term, (*player.Player).Vanished), nil
	}
	key, value, ok := strings.Cut(term, ":")
	if !ok {
		return nil, fmt.Errorf("unknown condition %q", term)
	}
	switch key {
	case "world":
		return Func(term, func(p *player.Player) bool { return p.World() == value }), nil
	case "server":
		return Func(term, func(p *player.Player) bool { return p.Server() == value }), nil
	case "group":
		return Func(term, func(p *player.Player) bool { return p.Group() == value }), nil
	case "gamemode":
		mode, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", term, err)
		}
		return Func(term, func(p *player.Player) bool { return p.GameMode() == mode }), nil
	default:
		return nil, fmt.Errorf("unknown condition %q", term)
	}
}
