package site

import (
	"sort"
	"sync"
)

// Table maps call-site names to their state.
//
// Uses sync.Map: sites are created once and then read on every execution.
type Table struct {
	sites sync.Map // string -> *CallSite
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// GetOrCreate returns the call site for id, creating it on first use.
//
// Thread Safety: concurrent first calls may both allocate, but LoadOrStore
// ensures only one CallSite is ever used.
func (t *Table) GetOrCreate(id string) *CallSite {
	if v, ok := t.sites.Load(id); ok {
		return v.(*CallSite)
	}
	v, _ := t.sites.LoadOrStore(id, New(id))
	return v.(*CallSite)
}

// Get returns the call site for id, or nil.
func (t *Table) Get(id string) *CallSite {
	if v, ok := t.sites.Load(id); ok {
		return v.(*CallSite)
	}
	return nil
}

// All returns every call site sorted by id.
func (t *Table) All() []*CallSite {
	var out []*CallSite
	t.sites.Range(func(_, v any) bool {
		out = append(out, v.(*CallSite))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
