package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"tab-overlay/server/internal/core"
	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/property"
	"tab-overlay/server/internal/tablist"
	"tab-overlay/server/internal/tablist/tablisttest"
	"tab-overlay/server/logging"
	logginglayout "tab-overlay/server/logging/layout"
)

type fixture struct {
	t       *testing.T
	ctx     *core.Context
	manager *Manager
	values  *property.Values
	events  *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []logging.Event
}

func (l *eventLog) publisher() logging.Publisher {
	return logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		l.mu.Lock()
		l.events = append(l.events, event)
		l.mu.Unlock()
	})
}

func (l *eventLog) ofType(eventType logging.EventType) []logging.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logging.Event
	for _, event := range l.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	values := property.NewValues()
	events := &eventLog{}
	ctx := core.New(core.Context{Resolver: values, Publisher: events.publisher()})
	m := NewManager(ctx, cfg, nil)
	ctx.Features.Register(Key, m)
	ctx.Features.Load()
	t.Cleanup(ctx.Features.Unload)
	return &fixture{t: t, ctx: ctx, manager: m, values: values, events: events}
}

func (f *fixture) join(name, sortKey, group string) (*player.Player, *tablisttest.Recorder) {
	f.t.Helper()
	rec := &tablisttest.Recorder{}
	p := player.New(uuid.New(), name, rec, player.Options{
		SortKey:  sortKey,
		Group:    group,
		Resolver: f.values,
	})
	p.TabList().SetHooks(f.ctx.Features.Hooks(p))
	f.ctx.Features.OnJoin(p)
	return p, rec
}

func groupLayout(name, cond string, groups ...GroupDefinition) PatternDefinition {
	return PatternDefinition{Name: name, Condition: cond, Groups: groups}
}

func slotIDs(view *View) []uuid.UUID {
	var ids []uuid.UUID
	for _, slot := range view.FixedSlots() {
		ids = append(ids, slot.ID())
	}
	for _, g := range view.Groups() {
		for _, slot := range g.Slots() {
			ids = append(ids, g.PlayerSlot(slot).ID())
		}
	}
	for _, slot := range view.EmptySlots() {
		ids = append(ids, view.manager.SlotID(slot))
	}
	return ids
}

func assignment(view *View) map[int]string {
	out := make(map[int]string)
	for _, g := range view.Groups() {
		for _, slot := range g.Slots() {
			ps := g.PlayerSlot(slot)
			if ps.Player() != nil {
				out[slot] = "player:" + ps.Player().Name()
			} else {
				out[slot] = "text:" + ps.Text()
			}
		}
	}
	return out
}

func TestTranslateSlotIsABijection(t *testing.T) {
	for _, dir := range []Direction{Columns, Rows} {
		seen := make(map[int]int)
		for slot := 1; slot <= MaxSlots; slot++ {
			translated := dir.TranslateSlot(slot)
			if translated < 1 || translated > MaxSlots {
				t.Fatalf("expected %s slot %d to stay within 1..80, got %d", dir, slot, translated)
			}
			if other, ok := seen[translated]; ok {
				t.Fatalf("expected unique translation, %s slots %d and %d both map to %d", dir, other, slot, translated)
			}
			seen[translated] = slot
		}
	}
	if got := Rows.TranslateSlot(2); got != 21 {
		t.Fatalf("expected rows slot 2 at 21, got %d", got)
	}
	if got := Rows.TranslateSlot(5); got != 2 {
		t.Fatalf("expected rows slot 5 at 2, got %d", got)
	}
	if got := Columns.EntryName(7); got != "|slot_17" {
		t.Fatalf("expected |slot_17, got %s", got)
	}
}

func TestSlotIDsNeverCollideWithPlayers(t *testing.T) {
	for slot := 1; slot <= MaxSlots; slot++ {
		if !IsSlotID(SlotID(Rows, slot)) {
			t.Fatalf("expected slot %d id in the slot partition", slot)
		}
	}
	for i := 0; i < 100; i++ {
		if IsSlotID(uuid.New()) {
			t.Fatalf("expected random ids outside the slot partition")
		}
	}
	if IsSlotID(uuid.Nil) {
		t.Fatalf("expected nil id outside the slot partition")
	}
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("rows")
	if err != nil || dir != Rows {
		t.Fatalf("expected ROWS, got %s (%v)", dir, err)
	}
	if _, err := ParseDirection("diagonal"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestSortedIndexOrdersByKeyThenID(t *testing.T) {
	idx := NewSortedIndex()
	a := player.New(uuid.MustParse("00000000-0000-0000-0000-0000000000aa"), "a", nil, player.Options{})
	b := player.New(uuid.MustParse("00000000-0000-0000-0000-0000000000bb"), "b", nil, player.Options{})
	c := player.New(uuid.New(), "c", nil, player.Options{})
	idx.Insert(c, "2")
	idx.Insert(b, "1")
	idx.Insert(a, "1")

	got := idx.Snapshot()
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Fatalf("expected a, b, c, got %v", names(got))
	}

	if !idx.Reposition(c, "0") {
		t.Fatalf("expected reposition of indexed player")
	}
	if first := idx.Snapshot()[0]; first != c {
		t.Fatalf("expected c first after reposition, got %s", first.Name())
	}
	if len(got) != 3 || got[0] != a {
		t.Fatalf("expected earlier snapshot to stay unchanged")
	}
	if key, _ := idx.Key(c); key != "0" {
		t.Fatalf("expected key 0, got %q", key)
	}

	if !idx.Remove(a) || idx.Remove(a) {
		t.Fatalf("expected a single successful removal")
	}
	if idx.Len() != 2 || idx.Contains(a) {
		t.Fatalf("expected 2 players without a, got %v", names(idx.Snapshot()))
	}
	if idx.Reposition(a, "9") {
		t.Fatalf("expected reposition of removed player to fail")
	}
}

func names(players []*player.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Name()
	}
	return out
}

func TestViewSlotIdentitiesAreUnique(t *testing.T) {
	five := 5
	f := newFixture(t, Config{
		Direction: Rows,
		Layouts: []PatternDefinition{{
			Name:       "main",
			FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Header"}, {Slot: 21, Text: "Staff", Ping: &five}},
			Groups: []GroupDefinition{
				{Name: "staff", Condition: "group:staff", Slots: []int{22, 23, 1, 22, 24}},
				{Name: "rest", Slots: []int{2, 3, 4, 23, 5}},
			},
		}},
	})
	for i := 0; i < 6; i++ {
		f.join(fmt.Sprintf("p%d", i), fmt.Sprintf("%02d", i), "staff")
	}
	viewer, _ := f.join("viewer", "zz", "default")

	view := f.manager.View(viewer)
	if view == nil {
		t.Fatalf("expected a view for the viewer")
	}
	ids := slotIDs(view)
	if len(ids) != MaxSlots {
		t.Fatalf("expected %d slots, got %d", MaxSlots, len(ids))
	}
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("expected unique slot ids, %s repeated", id)
		}
		seen[id] = true
	}

	shown := make(map[*player.Player]int)
	for _, g := range view.Groups() {
		for p, ps := range g.Players() {
			if slot, ok := shown[p]; ok {
				t.Fatalf("expected %s in one slot, found in %d and %d", p.Name(), slot, ps.Slot())
			}
			shown[p] = ps.Slot()
		}
	}
}

func TestGroupTickIsDeterministic(t *testing.T) {
	f := newFixture(t, Config{
		RemainingPlayersTextEnabled: true,
		RemainingPlayersText:        "+%s",
		Layouts: []PatternDefinition{groupLayout("main", "",
			GroupDefinition{Name: "vip", Condition: "group:vip", Slots: []int{1, 2, 3}},
			GroupDefinition{Name: "all", Slots: []int{4, 5, 6, 7}},
		)},
	})
	for i := 0; i < 8; i++ {
		group := "default"
		if i%2 == 0 {
			group = "vip"
		}
		f.join(fmt.Sprintf("p%d", i), fmt.Sprintf("%02d", 8-i), group)
	}
	first, _ := f.join("first", "zz1", "none")
	second, _ := f.join("second", "zz2", "none")

	a := newView(f.manager, f.manager.Pattern("main"), first)
	b := newView(f.manager, f.manager.Pattern("main"), second)
	a.Tick()
	b.Tick()
	again := assignment(a)
	a.Tick()

	want := assignment(b)
	for slot, got := range assignment(a) {
		if want[slot] != got || again[slot] != got {
			t.Fatalf("expected slot %d to be %s on every tick, got %s / %s", slot, want[slot], got, again[slot])
		}
	}
	if want[1] != "player:p6" || want[2] != "player:p4" || want[3] != "text:+2" {
		t.Fatalf("expected vip slots p6, p4, +2, got %v", want)
	}
}

func TestOverflowCollapsesIntoRemainingText(t *testing.T) {
	f := newFixture(t, Config{
		RemainingPlayersTextEnabled: true,
		RemainingPlayersText:        "%s more",
		Layouts: []PatternDefinition{groupLayout("main", "",
			GroupDefinition{Name: "vip", Condition: "group:vip", Slots: []int{1, 2, 3}},
		)},
	})
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f.join(name, name, "vip")
	}
	viewer, _ := f.join("viewer", "viewer", "default")

	view := f.manager.View(viewer)
	g := view.Groups()[0]
	if p := g.PlayerSlot(1).Player(); p == nil || p.Name() != "a" {
		t.Fatalf("expected a in slot 1, got %v", p)
	}
	if p := g.PlayerSlot(2).Player(); p == nil || p.Name() != "b" {
		t.Fatalf("expected b in slot 2, got %v", p)
	}
	last := g.PlayerSlot(3)
	if last.Player() != nil || last.Text() != "3 more" {
		t.Fatalf("expected slot 3 to read \"3 more\", got player=%v text=%q", last.Player(), last.Text())
	}
	entry, ok := viewer.TabList().Entry(f.manager.SlotID(3))
	if !ok || entry.DisplayName.String() != "3 more" {
		t.Fatalf("expected viewer to see \"3 more\", got %q", entry.DisplayName.String())
	}
}

func TestShortGroupKeepsBlankSlots(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2, 3}})},
	})
	viewer, _ := f.join("viewer", "a", "default")

	entry, ok := viewer.TabList().Entry(f.manager.SlotID(2))
	if !ok {
		t.Fatalf("expected empty group slot to stay present")
	}
	if entry.DisplayName.String() != "" {
		t.Fatalf("expected blank text, got %q", entry.DisplayName.String())
	}
	if p := f.manager.View(viewer).Groups()[0].PlayerSlot(1).Player(); p != viewer {
		t.Fatalf("expected viewer in slot 1")
	}
}

func TestSwitchToSamePatternIssuesNoMutations(t *testing.T) {
	f := newFixture(t, Config{
		RemainingPlayersTextEnabled: true,
		RemainingPlayersText:        "%s more",
		Layouts: []PatternDefinition{{
			Name:       "main",
			FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Header %motd%"}},
			Groups:     []GroupDefinition{{Name: "all", Slots: []int{2, 3}}},
		}},
	})
	f.values.Set("motd", "hello")
	for _, name := range []string{"a", "b", "c"} {
		f.join(name, name, "default")
	}
	viewer, rec := f.join("viewer", "viewer", "default")
	rec.Reset()

	previous := f.manager.View(viewer)
	f.manager.withView(viewer, func(*View) {
		next := newView(f.manager, previous.Pattern(), viewer)
		next.Send(previous)
	})
	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no mutations re-sending the same pattern, got %v", calls)
	}

	f.manager.Refresh(viewer, false)
	if err := f.manager.SendLayout(viewer, f.manager.Pattern("main")); err != nil {
		t.Fatalf("expected SendLayout to succeed, got %v", err)
	}
	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no mutations forcing the current pattern, got %v", calls)
	}
}

func TestFixedSlotTextChangeUpdatesInPlace(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{{
			Name:       "main",
			FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Online: %online%", Skin: "texture:static"}},
		}},
	})
	f.values.Set("online", "1")
	viewer, rec := f.join("viewer", "viewer", "default")
	slot := f.manager.Pattern("main").FixedSlots()[0]
	rec.Reset()

	slot.Refresh(viewer, false)
	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no mutations without a change, got %v", calls)
	}

	f.values.Set("online", "2")
	slot.Refresh(viewer, false)
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].Op != tablisttest.OpDisplayName {
		t.Fatalf("expected exactly one display name update, got %v", calls)
	}
	if calls[0].DisplayName.String() != "Online: 2" {
		t.Fatalf("expected \"Online: 2\", got %q", calls[0].DisplayName.String())
	}
}

func TestFixedSlotSkinChangeRecreatesEntry(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{{
			Name:       "main",
			FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Me", Skin: "%skin%"}},
		}},
	})
	f.values.Set("skin", "texture:first")
	viewer, rec := f.join("viewer", "viewer", "default")
	slot := f.manager.Pattern("main").FixedSlots()[0]
	rec.Reset()

	f.values.Set("skin", "texture:second")
	slot.Refresh(viewer, false)
	calls := rec.Calls()
	if len(calls) != 2 || calls[0].Op != tablisttest.OpRemove || calls[1].Op != tablisttest.OpAdd {
		t.Fatalf("expected one remove followed by one add, got %v", calls)
	}
	if calls[1].Entry.Skin == nil || calls[1].Entry.Skin.Value != "second" {
		t.Fatalf("expected the new skin, got %+v", calls[1].Entry.Skin)
	}
}

func TestFixedSlotRefreshIgnoresOtherPatterns(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{
			{Name: "lobby", Condition: "world:lobby", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "%x%"}}},
			{Name: "other", FixedSlots: []FixedSlotDefinition{{Slot: 2, Text: "other"}}},
		},
	})
	f.values.Set("x", "1")
	viewer, rec := f.join("viewer", "viewer", "default")
	rec.Reset()

	f.values.Set("x", "2")
	f.manager.Pattern("lobby").FixedSlots()[0].Refresh(viewer, false)
	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no mutations for a pattern the viewer does not see, got %v", calls)
	}
}

func TestPatternSwitchReusesFixedSlotsWithSameSkin(t *testing.T) {
	seven := 7
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{
			{Name: "lobby", Condition: "world:lobby", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Lobby", Skin: "texture:a"}}},
			{Name: "arena", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Arena", Skin: "texture:a", Ping: &seven}}},
		},
	})
	viewer, rec := f.join("viewer", "viewer", "default")
	if view := f.manager.View(viewer); view.Pattern().Name() != "arena" {
		t.Fatalf("expected arena, got %s", view.Pattern().Name())
	}

	id := f.manager.SlotID(1)
	viewer.SetWorld("lobby")
	rec.Reset()
	f.manager.Refresh(viewer, false)

	if view := f.manager.View(viewer); view.Pattern().Name() != "lobby" {
		t.Fatalf("expected lobby after switching worlds, got %s", view.Pattern().Name())
	}
	calls := rec.CallsFor(id)
	if len(calls) != 2 || calls[0].Op != tablisttest.OpDisplayName || calls[1].Op != tablisttest.OpLatency {
		t.Fatalf("expected in place text and latency updates, got %v", calls)
	}
	if calls[0].DisplayName.String() != "Lobby" {
		t.Fatalf("expected \"Lobby\", got %q", calls[0].DisplayName.String())
	}
	if n := len(f.events.ofType(logginglayout.EventPatternSwitched)); n != 1 {
		t.Fatalf("expected 1 pattern switch event, got %d", n)
	}
}

func TestSwitchingBackRestoresFixedSlotText(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{
			{Name: "lobby", Condition: "world:lobby", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Lobby", Skin: "texture:a"}}},
			{Name: "arena", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Arena", Skin: "texture:a"}}},
		},
	})
	viewer, rec := f.join("viewer", "viewer", "default")
	id := f.manager.SlotID(1)

	viewer.SetWorld("lobby")
	f.manager.Refresh(viewer, false)
	viewer.SetWorld("arena")
	rec.Reset()
	f.manager.Refresh(viewer, false)

	if view := f.manager.View(viewer); view.Pattern().Name() != "arena" {
		t.Fatalf("expected arena after switching back, got %s", view.Pattern().Name())
	}
	entry, ok := viewer.TabList().Entry(id)
	if !ok || entry.DisplayName.String() != "Arena" {
		t.Fatalf("expected \"Arena\", got %q", entry.DisplayName.String())
	}
	calls := rec.CallsFor(id)
	if len(calls) != 1 || calls[0].Op != tablisttest.OpDisplayName {
		t.Fatalf("expected a single in place text update, got %v", calls)
	}

	rec.Reset()
	if err := f.manager.SendLayout(viewer, f.manager.Pattern("arena")); err != nil {
		t.Fatalf("expected SendLayout to succeed, got %v", err)
	}
	if calls := rec.CallsFor(id); len(calls) != 0 {
		t.Fatalf("expected no mutations when re-sending the shown pattern, got %v", calls)
	}
}

func TestPatternSwitchRecreatesFixedSlotWithNewSkin(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{
			{Name: "lobby", Condition: "world:lobby", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Lobby", Skin: "texture:b"}}},
			{Name: "arena", FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Arena", Skin: "texture:a"}}},
		},
	})
	viewer, rec := f.join("viewer", "viewer", "default")
	viewer.SetWorld("lobby")
	rec.Reset()
	f.manager.Refresh(viewer, false)

	calls := rec.CallsFor(f.manager.SlotID(1))
	if len(calls) != 2 || calls[0].Op != tablisttest.OpRemove || calls[1].Op != tablisttest.OpAdd {
		t.Fatalf("expected remove and add for a skin change, got %v", calls)
	}
}

func TestFirstMatchingPatternWins(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{
			groupLayout("first", "group:vip", GroupDefinition{Name: "g", Slots: []int{1}}),
			groupLayout("second", "group:vip", GroupDefinition{Name: "g", Slots: []int{1}}),
			groupLayout("fallback", "", GroupDefinition{Name: "g", Slots: []int{1}}),
		},
	})
	vip, _ := f.join("vip", "a", "vip")
	regular, _ := f.join("regular", "b", "default")

	if got := f.manager.View(vip).Pattern().Name(); got != "first" {
		t.Fatalf("expected first, got %s", got)
	}
	if got := f.manager.View(regular).Pattern().Name(); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestNoMatchingPatternMeansNoView(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("vip", "group:vip", GroupDefinition{Name: "g", Slots: []int{1}})},
	})
	viewer, rec := f.join("viewer", "a", "default")
	if f.manager.View(viewer) != nil {
		t.Fatalf("expected no view")
	}
	for _, call := range rec.Calls() {
		if IsSlotID(call.ID) {
			t.Fatalf("expected no slot entries, got %v", call)
		}
	}
}

func TestQuitRemovesEverySlotExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{{
			Name:       "main",
			FixedSlots: []FixedSlotDefinition{{Slot: 1, Text: "Header"}},
			Groups:     []GroupDefinition{{Name: "all", Slots: []int{2, 3, 4}}},
		}},
	})
	f.join("other", "a", "default")
	viewer, rec := f.join("viewer", "b", "default")

	var sent []uuid.UUID
	for _, entry := range viewer.TabList().Entries() {
		if IsSlotID(entry.ID) {
			sent = append(sent, entry.ID)
		}
	}
	if len(sent) != MaxSlots {
		t.Fatalf("expected %d slot entries, got %d", MaxSlots, len(sent))
	}
	rec.Reset()

	f.ctx.Features.OnQuit(viewer)

	for _, id := range sent {
		removes := 0
		for _, call := range rec.CallsFor(id) {
			if call.Op == tablisttest.OpRemove {
				removes++
			}
		}
		if removes != 1 {
			t.Fatalf("expected exactly one removal of %s, got %d", id, removes)
		}
	}
	if got := rec.Count(tablisttest.OpRemove); got != len(sent) {
		t.Fatalf("expected %d removals, got %d", len(sent), got)
	}
	if f.manager.Sorted().Contains(viewer) {
		t.Fatalf("expected viewer to leave the sorted index")
	}
}

func TestQuitReticksOtherViews(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2}})},
	})
	leaving, _ := f.join("leaving", "a", "default")
	viewer, _ := f.join("viewer", "b", "default")
	g := f.manager.View(viewer).Groups()[0]
	if g.PlayerSlot(1).Player() != leaving {
		t.Fatalf("expected leaving player in slot 1")
	}

	f.ctx.Features.OnQuit(leaving)

	if g.PlayerSlot(1).Player() != viewer {
		t.Fatalf("expected viewer to move up to slot 1")
	}
	if g.PlayerSlot(2).Player() != nil {
		t.Fatalf("expected slot 2 to be cleared")
	}
}

func TestSortKeyChangeReordersEveryView(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2, 3}})},
	})
	a, _ := f.join("a", "1", "default")
	b, _ := f.join("b", "2", "default")
	c, _ := f.join("c", "3", "default")

	f.manager.UpdateSortKey(c, "0")
	for _, viewer := range []*player.Player{a, b, c} {
		g := f.manager.View(viewer).Groups()[0]
		if g.PlayerSlot(1).Player() != c {
			t.Fatalf("expected c first for %s", viewer.Name())
		}
	}

	b.SetSortKey("00")
	f.ctx.Features.OnGroupChange(b)
	if f.manager.View(a).Groups()[0].PlayerSlot(2).Player() != b {
		t.Fatalf("expected b second after its group change")
	}
}

func TestVanishedPlayersLeaveOtherViews(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2}})},
	})
	hidden, _ := f.join("hidden", "a", "default")
	viewer, _ := f.join("viewer", "b", "default")

	hidden.SetVanished(true)
	f.ctx.Features.OnVanishStatusChange(hidden)

	if got := f.manager.View(viewer).Groups()[0].PlayerSlot(1).Player(); got != viewer {
		t.Fatalf("expected vanished player to be skipped, got %v", got)
	}
	if got := f.manager.View(hidden).Groups()[0].PlayerSlot(1).Player(); got != hidden {
		t.Fatalf("expected vanished player to still see itself")
	}
}

func TestAuthoringAPIRequiresActiveFeature(t *testing.T) {
	ctx := core.New(core.Context{})
	m := NewManager(ctx, Config{}, nil)
	p := player.New(uuid.New(), "p", nil, player.Options{})

	if _, err := m.CreateLayout("custom"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if err := m.SendLayout(p, nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if err := m.ResetLayout(p); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestForcedLayoutOverridesConditions(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1}})},
	})
	viewer, _ := f.join("viewer", "a", "default")

	custom, err := f.manager.CreateLayout("custom")
	if err != nil {
		t.Fatalf("expected CreateLayout to succeed, got %v", err)
	}
	if err := custom.AddFixedSlot(10, "Forced", "", nil); err != nil {
		t.Fatalf("expected AddFixedSlot to succeed, got %v", err)
	}
	if err := custom.AddFixedSlot(81, "Nope", "", nil); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if f.manager.Pattern("custom") != nil {
		t.Fatalf("expected created layout to stay out of the configured patterns")
	}

	if err := f.manager.SendLayout(viewer, custom); err != nil {
		t.Fatalf("expected SendLayout to succeed, got %v", err)
	}
	if got := f.manager.View(viewer).Pattern(); got != custom {
		t.Fatalf("expected custom layout, got %s", got.Name())
	}
	entry, ok := viewer.TabList().Entry(f.manager.SlotID(10))
	if !ok || entry.DisplayName.String() != "Forced" {
		t.Fatalf("expected forced slot text, got %q", entry.DisplayName.String())
	}

	f.manager.Refresh(viewer, false)
	if got := f.manager.View(viewer).Pattern(); got != custom {
		t.Fatalf("expected refresh to keep the forced layout")
	}

	if err := f.manager.ResetLayout(viewer); err != nil {
		t.Fatalf("expected ResetLayout to succeed, got %v", err)
	}
	if got := f.manager.View(viewer).Pattern().Name(); got != "main" {
		t.Fatalf("expected main after reset, got %s", got)
	}
}

func TestForcedLayoutSharingConfiguredNameIsSent(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1}})},
	})
	viewer, _ := f.join("viewer", "a", "default")

	custom, err := f.manager.CreateLayout("main")
	if err != nil {
		t.Fatalf("expected CreateLayout to succeed, got %v", err)
	}
	if err := custom.AddFixedSlot(5, "Custom", "", nil); err != nil {
		t.Fatalf("expected AddFixedSlot to succeed, got %v", err)
	}
	if err := f.manager.SendLayout(viewer, custom); err != nil {
		t.Fatalf("expected SendLayout to succeed, got %v", err)
	}
	if got := f.manager.View(viewer).Pattern(); got != custom {
		t.Fatalf("expected the created layout to replace the configured one")
	}
	entry, ok := viewer.TabList().Entry(f.manager.SlotID(5))
	if !ok || entry.DisplayName.String() != "Custom" {
		t.Fatalf("expected \"Custom\" in slot 5, got %q", entry.DisplayName.String())
	}

	if err := f.manager.ResetLayout(viewer); err != nil {
		t.Fatalf("expected ResetLayout to succeed, got %v", err)
	}
	if got := f.manager.View(viewer).Pattern(); got != f.manager.Pattern("main") {
		t.Fatalf("expected the configured main layout after reset")
	}
}

func TestIgnoreEmptySlotsRemovesSlotsBeyondBoundary(t *testing.T) {
	f := newFixture(t, Config{
		HideRealPlayers:  true,
		IgnoreEmptySlots: true,
		Layouts: []PatternDefinition{{
			Name:       "small",
			FixedSlots: []FixedSlotDefinition{{Slot: 5, Text: "small"}},
		}},
	})
	viewer, _ := f.join("viewer", "a", "default")
	view := f.manager.View(viewer)
	if view.HighestSlot() != 20 || len(view.EmptySlots()) != 19 {
		t.Fatalf("expected boundary 20 with 19 empty slots, got %d and %d", view.HighestSlot(), len(view.EmptySlots()))
	}

	big, _ := f.manager.CreateLayout("big")
	if err := big.AddFixedSlot(45, "big", "", nil); err != nil {
		t.Fatalf("expected AddFixedSlot to succeed, got %v", err)
	}
	if err := f.manager.SendLayout(viewer, big); err != nil {
		t.Fatalf("expected SendLayout to succeed, got %v", err)
	}
	if !viewer.TabList().ContainsEntry(f.manager.SlotID(60)) {
		t.Fatalf("expected slot 60 inside the bigger boundary")
	}

	if err := f.manager.ResetLayout(viewer); err != nil {
		t.Fatalf("expected ResetLayout to succeed, got %v", err)
	}
	for slot := 21; slot <= MaxSlots; slot++ {
		if viewer.TabList().ContainsEntry(f.manager.SlotID(slot)) {
			t.Fatalf("expected slot %d beyond the boundary to be removed", slot)
		}
	}
	for slot := 1; slot <= 20; slot++ {
		if !viewer.TabList().ContainsEntry(f.manager.SlotID(slot)) {
			t.Fatalf("expected slot %d to be shown", slot)
		}
	}
}

func TestIgnoreEmptySlotsNeedsHiddenPlayers(t *testing.T) {
	f := newFixture(t, Config{
		IgnoreEmptySlots: true,
		Layouts:          []PatternDefinition{{Name: "small", FixedSlots: []FixedSlotDefinition{{Slot: 5, Text: "x"}}}},
	})
	viewer, _ := f.join("viewer", "a", "default")
	if got := len(f.manager.View(viewer).EmptySlots()); got != MaxSlots-1 {
		t.Fatalf("expected every other slot empty, got %d", got)
	}
}

func TestHideRealPlayersUnlistsVendorEntries(t *testing.T) {
	f := newFixture(t, Config{
		HideRealPlayers: true,
		Layouts:         []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1}})},
	})
	other, _ := f.join("other", "a", "default")
	viewer, rec := f.join("viewer", "b", "default")
	rec.Reset()

	stranger := uuid.New()
	viewer.TabList().Deliver(&tablist.PlayerInfo{
		Actions: tablist.ActionsAll,
		Records: []tablist.Entry{
			{ID: other.TabListID(), Name: "other", Listed: true},
			{ID: stranger, Name: "npc", Listed: true},
		},
	})

	if entry, _ := viewer.TabList().Entry(other.TabListID()); entry.Listed {
		t.Fatalf("expected real player entry to be unlisted")
	}
	if entry, _ := viewer.TabList().Entry(stranger); !entry.Listed {
		t.Fatalf("expected unknown entry to stay listed")
	}
}

func TestLatencyRefresherMirrorsPlayerLatency(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2}})},
	})
	target, _ := f.join("target", "a", "default")
	_, rec := f.join("viewer", "b", "default")
	refresher, ok := f.ctx.Features.Get(LatencyKey).(*LatencyRefresher)
	if !ok {
		t.Fatalf("expected latency refresher to be registered")
	}
	rec.Reset()

	refresher.Refresh(target, false)
	if got := rec.Count(tablisttest.OpLatency); got != 0 {
		t.Fatalf("expected no update for unchanged latency, got %d", got)
	}

	target.SetLatency(150)
	refresher.Refresh(target, false)
	calls := rec.CallsFor(f.manager.SlotID(1))
	if len(calls) != 1 || calls[0].Op != tablisttest.OpLatency || calls[0].Latency != 150 {
		t.Fatalf("expected one latency update to 150, got %v", calls)
	}
}

func TestTabListClearResendsView(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1}})},
	})
	viewer, _ := f.join("viewer", "a", "default")

	f.ctx.Features.OnTabListClear(viewer)

	for slot := 1; slot <= MaxSlots; slot++ {
		if !viewer.TabList().ContainsEntry(f.manager.SlotID(slot)) {
			t.Fatalf("expected slot %d to be re-sent", slot)
		}
	}
}

func TestUnloadRemovesSlotsAndDeactivates(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1}})},
	})
	viewer, _ := f.join("viewer", "a", "default")

	f.ctx.Features.Unload()

	for _, entry := range viewer.TabList().Entries() {
		if IsSlotID(entry.ID) {
			t.Fatalf("expected every slot entry removed, found %s", entry.ID)
		}
	}
	if _, err := f.manager.CreateLayout("late"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after unload, got %v", err)
	}
}

func TestInvalidDefinitionsAreReported(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{{
			Name:       "main",
			Condition:  "nonsense",
			FixedSlots: []FixedSlotDefinition{{Slot: 0, Text: "bad"}},
			Groups:     []GroupDefinition{{Name: "all", Slots: []int{81, 1}}},
		}},
	})
	diagnostics := f.events.ofType(logginglayout.EventConfigDiagnostic)
	if len(diagnostics) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(diagnostics))
	}
	pattern := f.manager.Pattern("main")
	if pattern.Condition() != nil {
		t.Fatalf("expected invalid condition to fall back to always met")
	}
	if groups := pattern.Groups(); len(groups[0].Slots) != 1 || groups[0].Slots[0] != 1 {
		t.Fatalf("expected only slot 1 kept, got %v", groups[0].Slots)
	}
	viewer, _ := f.join("viewer", "a", "default")
	if f.manager.View(viewer) == nil {
		t.Fatalf("expected pattern with a dropped condition to be shown")
	}
}

func TestFixedSlotTakesSlotFromGroups(t *testing.T) {
	f := newFixture(t, Config{
		Layouts: []PatternDefinition{groupLayout("main", "", GroupDefinition{Name: "all", Slots: []int{1, 2, 3}})},
	})
	pattern := f.manager.Pattern("main")
	if err := pattern.AddFixedSlot(2, "fixed", "", nil); err != nil {
		t.Fatalf("expected AddFixedSlot to succeed, got %v", err)
	}
	slots := pattern.Groups()[0].Slots
	if len(slots) != 2 || slots[0] != 1 || slots[1] != 3 {
		t.Fatalf("expected group slots [1 3], got %v", slots)
	}
	if !f.ctx.Features.Enabled(fixedSlotKey("main", 2)) {
		t.Fatalf("expected fixed slot feature to be registered")
	}
	if err := pattern.AddFixedSlot(2, "", "", nil); err != nil {
		t.Fatalf("expected AddFixedSlot to succeed, got %v", err)
	}
	if f.ctx.Features.Enabled(fixedSlotKey("main", 2)) {
		t.Fatalf("expected empty fixed slot to be unregistered")
	}
}
