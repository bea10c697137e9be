package resource

import (
	"sync"

	"github.com/google/btree"
)

// Table maps [ID] to [Resource]. It is owned by one execution context.
//
// Membership changes take a mutex so task goroutines may resolve ids while
// the loop goroutine adds or closes entries. The zero value is ready to use.
type Table struct {
	entries *btree.BTreeG[slot]
	mu      sync.RWMutex
	next    ID
}

type slot struct {
	r  Resource
	id ID
}

// Entry is an open resource, as listed by [Table.Names].
type Entry struct {
	Name string
	ID   ID
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: newEntries()}
}

func newEntries() *btree.BTreeG[slot] {
	return btree.NewG(16, func(a, b slot) bool { return a.id < b.id })
}

// Add inserts r and returns its id. It never fails.
//
// Ids come from a cursor that only moves forward; once it wraps, ids still
// open are skipped.
func (t *Table) Add(r Resource) ID {
	if r == nil {
		panic(`resource: nil resource`)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = newEntries()
	}
	if uint64(t.entries.Len()) > uint64(^ID(0)) {
		panic(`resource: table full`)
	}
	id := t.next
	for t.entries.Has(slot{id: id}) {
		id++
	}
	t.next = id + 1
	t.entries.ReplaceOrInsert(slot{id: id, r: r})
	return id
}

// Has reports whether id names an open resource.
func (t *Table) Has(id ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookup(id) != nil
}

// GetAny returns the resource for id, without regard to its concrete type.
func (t *Table) GetAny(id ID) (Resource, error) {
	t.mu.RLock()
	r := t.lookup(id)
	t.mu.RUnlock()
	if r == nil {
		return nil, badResource(id)
	}
	return r, nil
}

// Get returns the resource for id, as concrete type T. It fails with a
// NotFound-class error if id is absent, or if the resource is not a T.
// The table retains ownership.
func Get[T Resource](t *Table, id ID) (T, error) {
	r, err := t.GetAny(id)
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		var zero T
		return zero, badResourceType(id, r.Name(), zero)
	}
	return v, nil
}

// Take removes the resource for id and returns it as concrete type T,
// without invoking its Close hook. The caller takes ownership. A type
// mismatch leaves the entry in place.
func Take[T Resource](t *Table, id ID) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.lookup(id)
	if r == nil {
		return zero, badResource(id)
	}
	v, ok := r.(T)
	if !ok {
		return zero, badResourceType(id, r.Name(), zero)
	}
	t.entries.Delete(slot{id: id})
	return v, nil
}

// TakeAny removes the resource for id and returns it, without invoking its
// Close hook.
func (t *Table) TakeAny(id ID) (Resource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.lookup(id)
	if r == nil {
		return nil, badResource(id)
	}
	t.entries.Delete(slot{id: id})
	return r, nil
}

// Close removes the resource for id and invokes its Close hook exactly
// once. Closing an id that is not open returns a NotFound-class error.
//
// References obtained before Close remain usable; only new lookups fail.
func (t *Table) Close(id ID) error {
	r, err := t.TakeAny(id)
	if err != nil {
		return err
	}
	r.Close()
	return nil
}

// Len returns the number of open resources.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.entries == nil {
		return 0
	}
	return t.entries.Len()
}

// Names lists open resources, ordered by id.
func (t *Table) Names() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.entries == nil {
		return []Entry{}
	}
	entries := make([]Entry, 0, t.entries.Len())
	t.entries.Ascend(func(s slot) bool {
		entries = append(entries, Entry{ID: s.id, Name: s.r.Name()})
		return true
	})
	return entries
}

// CloseAll closes every open resource, in id order, and empties the table.
// The id cursor is kept. Hooks run outside the lock, so they may use the
// table.
func (t *Table) CloseAll() {
	t.mu.Lock()
	old := t.entries
	t.entries = newEntries()
	t.mu.Unlock()
	if old == nil {
		return
	}
	old.Ascend(func(s slot) bool {
		s.r.Close()
		return true
	})
}

func (t *Table) lookup(id ID) Resource {
	if t.entries == nil {
		return nil
	}
	s, ok := t.entries.Get(slot{id: id})
	if !ok {
		return nil
	}
	return s.r
}
