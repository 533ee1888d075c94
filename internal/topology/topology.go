// Package topology models the world / data-center / region market hierarchy
// and resolves tracking selections into the minimal set of backend scopes.
package topology

import (
	"fmt"
	"sort"
)

// World is a single market world.
type World struct {
	ID         uint32
	Name       string
	DataCenter string
}

// DataCenter is a cluster of worlds within a region.
type DataCenter struct {
	Name   string
	Region string
	Worlds []uint32
}

// Topology is the full hierarchy, loaded once at startup and read-only for
// the process lifetime.
type Topology struct {
	worlds       map[uint32]World
	worldsByName map[string]World
	dcs          map[string]DataCenter
	regions      map[string][]string // region → data center names
}

// New builds a topology from data centers and worlds. Worlds referenced by a
// data center but missing from the world list are dropped; a data center
// naming no known worlds is kept (it still resolves as a scope).
func New(dcs []DataCenter, worlds []World) (*Topology, error) {
	t := &Topology{
		worlds:       make(map[uint32]World, len(worlds)),
		worldsByName: make(map[string]World, len(worlds)),
		dcs:          make(map[string]DataCenter, len(dcs)),
		regions:      make(map[string][]string),
	}

	for _, w := range worlds {
		t.worlds[w.ID] = w
		t.worldsByName[w.Name] = w
	}

	for _, dc := range dcs {
		if dc.Name == "" {
			return nil, fmt.Errorf("data center with empty name in region %q", dc.Region)
		}
		kept := make([]uint32, 0, len(dc.Worlds))
		for _, id := range dc.Worlds {
			w, ok := t.worlds[id]
			if !ok {
				continue
			}
			w.DataCenter = dc.Name
			t.worlds[id] = w
			t.worldsByName[w.Name] = w
			kept = append(kept, id)
		}
		dc.Worlds = kept
		t.dcs[dc.Name] = dc
		t.regions[dc.Region] = append(t.regions[dc.Region], dc.Name)
	}

	for region := range t.regions {
		sort.Strings(t.regions[region])
	}

	return t, nil
}

// WorldByName looks up a world by name.
func (t *Topology) WorldByName(name string) (World, bool) {
	w, ok := t.worldsByName[name]
	return w, ok
}

// WorldByID looks up a world by ID.
func (t *Topology) WorldByID(id uint32) (World, bool) {
	w, ok := t.worlds[id]
	return w, ok
}

// DataCenterByName looks up a data center by name.
func (t *Topology) DataCenterByName(name string) (DataCenter, bool) {
	dc, ok := t.dcs[name]
	return dc, ok
}

// Regions returns all region names, sorted.
func (t *Topology) Regions() []string {
	out := make([]string, 0, len(t.regions))
	for r := range t.regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// WorldIDsInScope returns the IDs of every world covered by a scope string
// (world, data center, or region name). Unknown scopes return nil.
func (t *Topology) WorldIDsInScope(scope string) []uint32 {
	if w, ok := t.worldsByName[scope]; ok {
		return []uint32{w.ID}
	}
	if dc, ok := t.dcs[scope]; ok {
		out := make([]uint32, len(dc.Worlds))
		copy(out, dc.Worlds)
		return out
	}
	if dcNames, ok := t.regions[scope]; ok {
		var out []uint32
		for _, name := range dcNames {
			out = append(out, t.dcs[name].Worlds...)
		}
		return out
	}
	return nil
}
