package references

import (
	"strconv"
	"strings"

	"sections.ai/internal/sim/blockdata"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/ids"
)

// Group names stored in block storage.
const (
	GroupToolbar     = "ToolbarSlots"
	GroupBindings    = "Bindings"
	GroupSelection   = "SelectedBlocks"
	GroupTools       = "Tools"
	GroupButtonNames = "ButtonNames"

	waypointPrefix = "Waypoint."
)

func WaypointGroup(i int) string { return waypointPrefix + strconv.Itoa(i) }

// part handles one kind of reference-bearing field of a block.
type part interface {
	// backup returns the number of references recorded.
	backup(c *Catalog, groups *blockdata.Groups) int
	restore(c *Catalog, groups *blockdata.Groups) RestoreStats
}

func partsFor(acc host.Accessors) []part {
	var parts []part
	if acc.Toolbar != nil {
		parts = append(parts, toolbarPart{group: GroupToolbar, bar: acc.Toolbar})
	}
	if acc.Bindings != nil {
		parts = append(parts, bindingsPart{acc.Bindings})
	}
	if acc.Selection != nil {
		parts = append(parts, setPart{group: GroupSelection, set: acc.Selection})
	}
	if acc.Tools != nil {
		parts = append(parts, setPart{group: GroupTools, set: acc.Tools})
	}
	if acc.Waypoints != nil {
		parts = append(parts, waypointsPart{acc.Waypoints})
	}
	if acc.ButtonNames != nil {
		parts = append(parts, buttonNamesPart{acc.ButtonNames})
	}
	return parts
}

// toolbarPart stores slot index -> target token for block-valued slots.
type toolbarPart struct {
	group string
	bar   host.Toolbar
}

func (p toolbarPart) backup(c *Catalog, groups *blockdata.Groups) int {
	n := 0
	for i := 0; i < p.bar.SlotCount(); i++ {
		id, ok := p.bar.BlockAt(i)
		if !ok {
			continue
		}
		token, ok := c.tokenOf(id)
		if !ok {
			continue
		}
		groups.Ensure(p.group).Set(ids.SlotKey(i), token)
		n++
	}
	return n
}

func (p toolbarPart) restore(c *Catalog, groups *blockdata.Groups) RestoreStats {
	var st RestoreStats
	g, ok := groups.Get(p.group)
	if !ok {
		return st
	}
	for _, key := range g.Keys() {
		i, ok := ids.ParseSlotKey(key)
		if !ok || i >= p.bar.SlotCount() {
			g.Delete(key)
			st.Pruned++
			continue
		}
		cur, ok := p.bar.BlockAt(i)
		if !ok {
			g.Delete(key)
			st.Pruned++
			continue
		}
		if c.valid(cur) {
			continue
		}
		token, _ := g.Get(key)
		target, ok := c.handleOf(token)
		if !ok {
			st.Dangling++
			continue
		}
		p.bar.SetBlockAt(i, target)
		st.Repaired++
	}
	return st
}

// bindingsPart stores binding name -> target token.
type bindingsPart struct {
	b host.Bindings
}

func (p bindingsPart) backup(c *Catalog, groups *blockdata.Groups) int {
	n := 0
	for _, name := range p.b.Names() {
		token, ok := c.tokenOf(p.b.Bound(name))
		if !ok {
			continue
		}
		groups.Ensure(GroupBindings).Set(name, token)
		n++
	}
	return n
}

func (p bindingsPart) restore(c *Catalog, groups *blockdata.Groups) RestoreStats {
	var st RestoreStats
	g, ok := groups.Get(GroupBindings)
	if !ok {
		return st
	}
	known := map[string]struct{}{}
	for _, name := range p.b.Names() {
		known[name] = struct{}{}
	}
	for _, key := range g.Keys() {
		if _, ok := known[key]; !ok {
			g.Delete(key)
			st.Pruned++
			continue
		}
		if c.valid(p.b.Bound(key)) {
			continue
		}
		token, _ := g.Get(key)
		target, ok := c.handleOf(token)
		if !ok {
			st.Dangling++
			continue
		}
		p.b.Bind(key, target)
		st.Repaired++
	}
	return st
}

// setPart stores a set of target tokens as keys with empty values. Changes
// to the live set are applied as deltas.
type setPart struct {
	group string
	set   host.BlockSet
}

func (p setPart) backup(c *Catalog, groups *blockdata.Groups) int {
	live := map[string]struct{}{}
	var order []string
	for _, id := range p.set.IDs() {
		token, ok := c.tokenOf(id)
		if !ok {
			continue
		}
		if _, dup := live[token]; !dup {
			live[token] = struct{}{}
			order = append(order, token)
		}
	}

	g, had := groups.Get(p.group)
	if had {
		for _, token := range g.Keys() {
			if _, selected := live[token]; selected {
				continue
			}
			// Targets outside this structure are kept, deselected ones dropped.
			if _, present := c.byToken[token]; present {
				g.Delete(token)
			}
		}
	}
	if len(order) > 0 {
		g = groups.Ensure(p.group)
		for _, token := range order {
			g.Set(token, "")
		}
	}
	if g != nil && g.Len() == 0 {
		groups.Delete(p.group)
	}
	return len(order)
}

func (p setPart) restore(c *Catalog, groups *blockdata.Groups) RestoreStats {
	var st RestoreStats
	g, ok := groups.Get(p.group)
	if !ok {
		return st
	}

	live := p.set.IDs()
	var missing []host.BlockID
	have := map[host.BlockID]struct{}{}
	for _, id := range live {
		if c.valid(id) {
			have[id] = struct{}{}
		} else {
			missing = append(missing, id)
		}
	}
	if len(live) > 0 && len(missing) == 0 {
		return st
	}

	var add []host.BlockID
	for _, token := range g.Keys() {
		id, ok := c.handleOf(token)
		if !ok {
			st.Dangling++
			continue
		}
		if _, dup := have[id]; dup {
			continue
		}
		have[id] = struct{}{}
		add = append(add, id)
	}
	if len(missing) > 0 {
		p.set.Remove(missing)
		st.Repaired += len(missing)
	}
	if len(add) > 0 {
		p.set.Add(add)
		st.Repaired += len(add)
	}
	return st
}

// waypointsPart keeps one toolbar group per recorded waypoint.
type waypointsPart struct {
	w host.WaypointToolbars
}

func (p waypointsPart) each(fn func(toolbarPart)) {
	for i := 0; i < p.w.WaypointCount(); i++ {
		if bar := p.w.WaypointToolbar(i); bar != nil {
			fn(toolbarPart{group: WaypointGroup(i), bar: bar})
		}
	}
}

func (p waypointsPart) backup(c *Catalog, groups *blockdata.Groups) int {
	n := 0
	p.each(func(tp toolbarPart) { n += tp.backup(c, groups) })
	return n
}

func (p waypointsPart) restore(c *Catalog, groups *blockdata.Groups) RestoreStats {
	var st RestoreStats
	count := p.w.WaypointCount()
	for _, name := range groups.Names() {
		idx, ok := strings.CutPrefix(name, waypointPrefix)
		if !ok {
			continue
		}
		if i, ok := ids.ParseSlotKey(idx); !ok || i >= count {
			g, _ := groups.Get(name)
			st.Pruned += g.Len()
			groups.Delete(name)
		}
	}
	p.each(func(tp toolbarPart) { st.add(tp.restore(c, groups)) })
	return st
}

// buttonNamesPart carries custom button names, which the engine drops on
// copy. No references are involved.
type buttonNamesPart struct {
	n host.ButtonNames
}

func (p buttonNamesPart) backup(_ *Catalog, groups *blockdata.Groups) int {
	for i := 0; i < p.n.ButtonCount(); i++ {
		key := ids.SlotKey(i)
		if name := p.n.ButtonName(i); name != "" {
			groups.Ensure(GroupButtonNames).Set(key, encodeButtonName(name))
		} else if g, ok := groups.Get(GroupButtonNames); ok {
			g.Delete(key)
		}
	}
	if g, ok := groups.Get(GroupButtonNames); ok && g.Len() == 0 {
		groups.Delete(GroupButtonNames)
	}
	return 0
}

func (p buttonNamesPart) restore(_ *Catalog, groups *blockdata.Groups) RestoreStats {
	var st RestoreStats
	g, ok := groups.Get(GroupButtonNames)
	if !ok {
		return st
	}
	for _, key := range g.Keys() {
		i, ok := ids.ParseSlotKey(key)
		if !ok || i >= p.n.ButtonCount() {
			g.Delete(key)
			st.Pruned++
			continue
		}
		raw, _ := g.Get(key)
		name := decodeButtonName(raw)
		if p.n.ButtonName(i) == "" && name != "" {
			p.n.SetButtonName(i, name)
			st.Repaired++
		}
	}
	return st
}

// encodeButtonName quotes names the blob parser would not read back as
// written: line breaks, surrounding spaces, or a leading quote. Other names
// are stored verbatim.
func encodeButtonName(name string) string {
	if strings.ContainsAny(name, "\r\n") || strings.TrimSpace(name) != name || strings.HasPrefix(name, `"`) {
		return strconv.Quote(name)
	}
	return name
}

func decodeButtonName(v string) string {
	if strings.HasPrefix(v, `"`) {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
	}
	return v
}
