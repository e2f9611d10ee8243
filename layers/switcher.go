// Package layers provides general purpose layers: a Switcher, which swaps
// the active layer on Alt+digit, and a StatsOverlay, which draws the loop
// statistics to a terminal.
package layers

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-layerloop"
	"github.com/joeycumines/go-layerloop/input"
)

// MaxSwitcherEntries is the number of entries reachable by Alt+digit.
const MaxSwitcherEntries = 10

var ErrUnknownEntry = errors.New("layers: unknown switcher entry")

// Entry is a named layer constructor.
type Entry struct {
	Name    string
	Factory layerloop.Factory
}

// Switcher is a layer holding a registry of entries. Alt+N (press) replaces
// the stack with the switcher itself, the layers it keeps, and a new layer
// constructed from entry N. Every other layer is popped (and released).
type Switcher struct {
	layerloop.Base
	entries []Entry
	keep    []layerloop.Layer
	current int
}

var _ layerloop.Layer = (*Switcher)(nil)

// NewSwitcher validates entries, which must have unique non-empty names and
// non-nil factories. The keep layers stay in the stack, after the switcher,
// whenever the entry changes, and are not released by a switch.
func NewSwitcher(entries []Entry, keep ...layerloop.Layer) (*Switcher, error) {
	if len(entries) == 0 {
		return nil, errors.New("layers: switcher requires at least one entry")
	}
	names := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Name == `` {
			return nil, fmt.Errorf("layers: switcher entry %d has no name", i)
		}
		if e.Factory == nil {
			return nil, fmt.Errorf("layers: switcher entry %q has no factory", e.Name)
		}
		if _, ok := names[e.Name]; ok {
			return nil, fmt.Errorf("layers: duplicate switcher entry %q", e.Name)
		}
		names[e.Name] = struct{}{}
	}
	for _, l := range keep {
		if l == nil {
			return nil, layerloop.ErrNilLayer
		}
	}
	return &Switcher{
		entries: entries,
		keep:    keep,
		current: -1,
	}, nil
}

// Names returns the entry names, in order.
func (x *Switcher) Names() []string {
	names := make([]string, len(x.entries))
	for i, e := range x.entries {
		names[i] = e.Name
	}
	return names
}

// Current returns the name of the last selected entry, or "" if none.
func (x *Switcher) Current() string {
	if x.current < 0 {
		return ``
	}
	return x.entries[x.current].Name
}

// Switch queues replacement of the stack with the switcher, its kept
// layers, and entry i.
func (x *Switcher) Switch(stack *layerloop.LayerStack, i int) error {
	if i < 0 || i >= len(x.entries) {
		return fmt.Errorf("%w: index %d", ErrUnknownEntry, i)
	}
	stack.Manipulate(x.retain)
	stack.Push(x.entries[i].Factory, -1)
	x.current = i
	return nil
}

// retain removes every layer but the switcher and its kept layers, then
// appends whichever of those are missing. Retained layers are never
// released, and keep their handles.
func (x *Switcher) retain(layers *layerloop.Layers) error {
	for i := range layers.Len() {
		if l := layers.At(i); l != nil && !x.retained(l) {
			if err := layers.Remove(i); err != nil {
				return err
			}
		}
	}
	if layers.Index(x) < 0 {
		if _, err := layers.Insert(-1, x); err != nil {
			return err
		}
	}
	for _, l := range x.keep {
		if layers.Index(l) < 0 {
			if _, err := layers.Insert(-1, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *Switcher) retained(l layerloop.Layer) bool {
	if l == layerloop.Layer(x) {
		return true
	}
	for _, k := range x.keep {
		if l == k {
			return true
		}
	}
	return false
}

// SwitchTo is Switch, by name.
func (x *Switcher) SwitchTo(stack *layerloop.LayerStack, name string) error {
	for i, e := range x.entries {
		if e.Name == name {
			return x.Switch(stack, i)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntry, name)
}

func (x *Switcher) OnEvent(app *layerloop.App, event layerloop.Event) error {
	key, ok := event.(input.KeyEvent)
	if !ok || key.Action != input.Press || !key.Mods.Has(input.ModAlt) {
		return nil
	}
	i, ok := key.Digit()
	if !ok || i >= min(MaxSwitcherEntries, len(x.entries)) {
		return nil
	}
	app.Logger().Info().
		Str(`from`, x.Current()).
		Str(`to`, x.entries[i].Name).
		Log(`switching layer`)
	return x.Switch(app.Stack(), i)
}
