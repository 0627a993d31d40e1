package blockdata

// Group is an ordered string map. Insertion order is kept so an unmodified
// blob formats back to the same text.
type Group struct {
	keys   []string
	values map[string]string
}

func NewGroup() *Group {
	return &Group{values: map[string]string{}}
}

func (g *Group) Len() int { return len(g.keys) }

func (g *Group) Get(key string) (string, bool) {
	v, ok := g.values[key]
	return v, ok
}

func (g *Group) Set(key, value string) {
	if _, ok := g.values[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.values[key] = value
}

func (g *Group) Delete(key string) bool {
	if _, ok := g.values[key]; !ok {
		return false
	}
	delete(g.values, key)
	for i, k := range g.keys {
		if k == key {
			g.keys = append(g.keys[:i], g.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy, safe to range over while deleting.
func (g *Group) Keys() []string {
	return append([]string(nil), g.keys...)
}

func (g *Group) Equal(o *Group) bool {
	if g.Len() != o.Len() {
		return false
	}
	for i, k := range g.keys {
		if o.keys[i] != k || o.values[k] != g.values[k] {
			return false
		}
	}
	return true
}

// Groups is an ordered set of named groups.
type Groups struct {
	names  []string
	byName map[string]*Group
}

func NewGroups() *Groups {
	return &Groups{byName: map[string]*Group{}}
}

func (gs *Groups) Len() int { return len(gs.names) }

func (gs *Groups) Names() []string {
	return append([]string(nil), gs.names...)
}

func (gs *Groups) Get(name string) (*Group, bool) {
	g, ok := gs.byName[name]
	return g, ok
}

// Ensure returns the named group, creating an empty one if missing.
func (gs *Groups) Ensure(name string) *Group {
	if g, ok := gs.byName[name]; ok {
		return g
	}
	return gs.Replace(name)
}

// Replace installs a fresh empty group under name. An existing group keeps
// its position.
func (gs *Groups) Replace(name string) *Group {
	if _, ok := gs.byName[name]; !ok {
		gs.names = append(gs.names, name)
	}
	g := NewGroup()
	gs.byName[name] = g
	return g
}

func (gs *Groups) Delete(name string) bool {
	if _, ok := gs.byName[name]; !ok {
		return false
	}
	delete(gs.byName, name)
	for i, n := range gs.names {
		if n == name {
			gs.names = append(gs.names[:i], gs.names[i+1:]...)
			break
		}
	}
	return true
}

func (gs *Groups) Clear() {
	gs.names = nil
	gs.byName = map[string]*Group{}
}

func (gs *Groups) Equal(o *Groups) bool {
	if gs.Len() != o.Len() {
		return false
	}
	for i, n := range gs.names {
		if o.names[i] != n || !gs.byName[n].Equal(o.byName[n]) {
			return false
		}
	}
	return true
}
