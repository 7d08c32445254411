package od

import (
	"sync"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// Hook is invoked after a sub-entry write has already been applied (the
// atomic swap has happened). Returning a non-nil error rolls the write back
// to its previous value; returning nil accepts the write and may trigger
// side effects (spec.md §4.2: "Hooks may reject the write (rolled back) or
// accept and trigger side effects").
type Hook func(index uint16, sub uint8, newValue []byte) error

// Entry is one OD index: a VAR (single Variable at sub-index 0), an ARRAY
// (sub-index 0 is a count, sub-indices 1..N share a DataType), or a RECORD
// (heterogeneous sub-indices), per spec.md §3.
type Entry struct {
	mu sync.RWMutex

	Index      uint16
	Name       string
	ObjectType ObjectType

	// subs holds every sub-index, including sub-index 0. For ARRAY entries,
	// subs[0] is maintained internally and always reflects len(subs)-1.
	subs  []*Variable
	hooks map[uint8][]Hook
}

// NewVarEntry creates a VAR entry: a single Variable at sub-index 0.
func NewVarEntry(index uint16, name string, v *Variable) *Entry {
	v.SubIndex = 0
	return &Entry{Index: index, Name: name, ObjectType: ObjectVAR, subs: []*Variable{v}, hooks: map[uint8][]Hook{}}
}

// NewArrayEntry creates an ARRAY entry. elems are the homogeneous
// sub-entries 1..N; sub-index 0 (the UNSIGNED8 count) is synthesised and
// kept consistent automatically.
func NewArrayEntry(index uint16, name string, elems []*Variable) *Entry {
	count := NewVariable("NrOfEntries", 0, UNSIGNED8, AccessReadOnly, PDOMapNone, []byte{byte(len(elems))})
	subs := make([]*Variable, 0, len(elems)+1)
	subs = append(subs, count)
	for i, e := range elems {
		e.SubIndex = uint8(i + 1)
		subs = append(subs, e)
	}
	return &Entry{Index: index, Name: name, ObjectType: ObjectARRAY, subs: subs, hooks: map[uint8][]Hook{}}
}

// NewRecordEntry creates a RECORD entry out of arbitrarily-typed sub-entries,
// indexed by their own SubIndex field (subs[0] is still the count).
func NewRecordEntry(index uint16, name string, subEntries []*Variable) *Entry {
	count := NewVariable("NrOfEntries", 0, UNSIGNED8, AccessReadOnly, PDOMapNone, []byte{byte(len(subEntries))})
	subs := make([]*Variable, 0, len(subEntries)+1)
	subs = append(subs, count)
	subs = append(subs, subEntries...)
	return &Entry{Index: index, Name: name, ObjectType: ObjectRECORD, subs: subs, hooks: map[uint8][]Hook{}}
}

// Sub returns the Variable at the given sub-index.
func (e *Entry) Sub(sub uint8) (*Variable, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, v := range e.subs {
		if v.SubIndex == sub {
			return v, nil
		}
	}
	return nil, plerr.NewOD(plerr.CodeSubObjectNotFound, e.Index, sub, "")
}

// SubCount returns the number of sub-entries, including sub-index 0.
func (e *Entry) SubCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// AddHook registers a write hook for the given sub-index.
func (e *Entry) AddHook(sub uint8, h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks[sub] = append(e.hooks[sub], h)
}

// runHooks invokes every hook registered for sub in order; the first error
// aborts the sequence and is returned (the caller rolls back).
func (e *Entry) runHooks(sub uint8, newValue []byte) error {
	e.mu.RLock()
	hooks := append([]Hook(nil), e.hooks[sub]...)
	e.mu.RUnlock()
	for _, h := range hooks {
		if err := h(e.Index, sub, newValue); err != nil {
			return err
		}
	}
	return nil
}

// appendArrayElement grows an ARRAY/RECORD entry by one sub-entry and keeps
// sub-index 0's count in sync. Used by PDO comm/mapping object templates
// that size themselves from configuration (spec.md §4.2 invariant c).
func (e *Entry) appendArrayElement(v *Variable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v.SubIndex = uint8(len(e.subs))
	e.subs = append(e.subs, v)
	e.subs[0].setRaw([]byte{byte(len(e.subs) - 1)})
}
