package topology

import (
	"log/slog"
	"sort"
)

// ScopeMode is the level at which a tracking selection is expressed.
type ScopeMode string

const (
	ModeWorld      ScopeMode = "world"
	ModeDataCenter ScopeMode = "datacenter"
	ModeRegion     ScopeMode = "region"
)

// Selection is a set of names selected at one level of the hierarchy.
type Selection struct {
	Mode  ScopeMode
	Names []string
}

// Resolve reduces a selection to the minimal equivalent set of scope strings
// for the backend: a data center stands in for its worlds when every one of
// them is selected, and a region stands in for its data centers when every
// one of them collapses. The result never over- or under-selects.
//
// Names that do not exist in the topology are dropped and logged. If nothing
// in a non-empty selection resolves, the broadest available scopes (all
// regions) are returned so a misconfigured subscription degrades to
// over-coverage instead of silence.
func (t *Topology) Resolve(sel Selection, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	if len(sel.Names) == 0 {
		return nil
	}

	var scopes []string
	switch sel.Mode {
	case ModeWorld:
		scopes = t.resolveWorlds(sel.Names, logger)
	case ModeDataCenter:
		scopes = t.resolveDataCenters(sel.Names, logger)
	case ModeRegion:
		scopes = t.resolveRegions(sel.Names, logger)
	default:
		logger.Warn("unknown scope mode, falling back to all regions", "mode", sel.Mode)
	}

	if len(scopes) == 0 {
		logger.Warn("selection resolved to nothing, falling back to all regions",
			"mode", sel.Mode,
			"names", sel.Names,
		)
		return t.Regions()
	}

	sort.Strings(scopes)
	return scopes
}

func (t *Topology) resolveWorlds(names []string, logger *slog.Logger) []string {
	// Group the selected worlds by data center.
	byDC := make(map[string]map[uint32]struct{})
	for _, name := range names {
		w, ok := t.worldsByName[name]
		if !ok {
			logger.Warn("unknown world in selection, dropping", "world", name)
			continue
		}
		if byDC[w.DataCenter] == nil {
			byDC[w.DataCenter] = make(map[uint32]struct{})
		}
		byDC[w.DataCenter][w.ID] = struct{}{}
	}

	// Collapse fully-selected data centers; keep partial ones as world scopes.
	collapsedByRegion := make(map[string]int)
	var partial []string
	collapsed := make(map[string]struct{})

	for dcName, selected := range byDC {
		dc := t.dcs[dcName]
		if len(selected) == len(dc.Worlds) && len(dc.Worlds) > 0 {
			collapsed[dcName] = struct{}{}
			collapsedByRegion[dc.Region]++
			continue
		}
		for id := range selected {
			partial = append(partial, t.worlds[id].Name)
		}
	}

	// Collapse regions whose every data center collapsed.
	var scopes []string
	doneRegions := make(map[string]struct{})
	for dcName := range collapsed {
		region := t.dcs[dcName].Region
		if _, done := doneRegions[region]; done {
			continue
		}
		if collapsedByRegion[region] == len(t.regions[region]) {
			scopes = append(scopes, region)
			doneRegions[region] = struct{}{}
		} else {
			scopes = append(scopes, dcName)
		}
	}

	return append(scopes, partial...)
}

func (t *Topology) resolveDataCenters(names []string, logger *slog.Logger) []string {
	selected := make(map[string]struct{})
	byRegion := make(map[string]int)
	for _, name := range names {
		dc, ok := t.dcs[name]
		if !ok {
			logger.Warn("unknown data center in selection, dropping", "datacenter", name)
			continue
		}
		if _, dup := selected[name]; dup {
			continue
		}
		selected[name] = struct{}{}
		byRegion[dc.Region]++
	}

	var scopes []string
	doneRegions := make(map[string]struct{})
	for name := range selected {
		region := t.dcs[name].Region
		if _, done := doneRegions[region]; done {
			continue
		}
		if byRegion[region] == len(t.regions[region]) {
			scopes = append(scopes, region)
			doneRegions[region] = struct{}{}
		} else {
			scopes = append(scopes, name)
		}
	}
	return scopes
}

func (t *Topology) resolveRegions(names []string, logger *slog.Logger) []string {
	seen := make(map[string]struct{})
	var scopes []string
	for _, name := range names {
		if _, ok := t.regions[name]; !ok {
			logger.Warn("unknown region in selection, dropping", "region", name)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		scopes = append(scopes, name)
	}
	return scopes
}
