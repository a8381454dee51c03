package substrate

import "sort"

// FindGroup returns the group named name, or nil.
func (b *Brain) FindGroup(name string) *Group {
	for _, g := range b.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (b *Brain) groupIndex(name string) int {
	for i, g := range b.groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// quietestUnreserved returns up to n unit indices, unreserved and
// unassigned to any group, ordered from quietest (lowest recent activity)
// to loudest.
func (b *Brain) quietestUnreserved(n int) []int32 {
	candidates := make([]int32, 0)
	for i := 0; i < b.units.N(); i++ {
		if b.units.Reserved[i] || b.units.GroupOf[i] != NoGroup {
			continue
		}
		candidates = append(candidates, int32(i))
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		qa := absf(b.units.Amp[a]) + b.units.Salience[a]
		qc := absf(b.units.Amp[c]) + b.units.Salience[c]
		return qa < qc
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// DeclareGroup creates a new named group of the given kind and width,
// reserving the currently quietest unreserved units, and pairs it 1:1 with
// a fresh routing module. Action groups receive a small positive bias so
// they can become attractors.
func (b *Brain) DeclareGroup(kind GroupKind, name string, width int) *Group {
	if g := b.FindGroup(name); g != nil {
		return g
	}
	members := b.quietestUnreserved(width)
	g := &Group{Name: name, Kind: kind, Members: members, ModuleIdx: int32(len(b.modules))}
	for _, m := range members {
		b.units.GroupOf[m] = int32(len(b.groups))
		if kind == KindAction {
			b.units.Bias[m] = maxf(b.units.Bias[m], 0.05)
		}
	}
	b.groups = append(b.groups, g)
	mod := newModule(int32(len(b.groups)-1), kind == KindLatent, b.ageSteps)
	b.modules = append(b.modules, mod)
	return g
}

// EnsureMinWidth grows an existing group to at least w members, declaring
// it first if it does not yet exist.
func (b *Brain) EnsureMinWidth(kind GroupKind, name string, w int) *Group {
	g := b.FindGroup(name)
	if g == nil {
		return b.DeclareGroup(kind, name, w)
	}
	deficit := w - len(g.Members)
	if deficit <= 0 {
		return g
	}
	added := b.quietestUnreserved(deficit)
	gi := int32(b.groupIndex(name))
	for _, m := range added {
		b.units.GroupOf[m] = gi
		if kind == KindAction {
			b.units.Bias[m] = maxf(b.units.Bias[m], 0.05)
		}
	}
	g.Members = append(g.Members, added...)
	return g
}

// GroupsByKind returns the names of all groups of the given kind.
func (b *Brain) GroupsByKind(kind GroupKind) []string {
	out := make([]string, 0)
	for _, g := range b.groups {
		if g.Kind == kind {
			out = append(out, g.Name)
		}
	}
	return out
}
