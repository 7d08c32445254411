package od

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// ObjectDictionary is the indexed store of all entries for one node,
// grounded on the teacher's od/interface.go ObjectDictionary, generalised to
// the access-class/PDO-mapping-eligibility model of spec.md §3.
type ObjectDictionary struct {
	mu      sync.RWMutex
	entries map[uint16]*Entry
	logger  *log.Entry
	storage Storage
}

// New creates an empty ObjectDictionary. logger may be nil, in which case a
// disabled no-op entry is used so callers never need a nil check.
func New(logger *log.Entry) *ObjectDictionary {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	return &ObjectDictionary{entries: map[uint16]*Entry{}, logger: logger}
}

// AddEntry installs an entry, overwriting any existing entry at the same
// index.
func (od *ObjectDictionary) AddEntry(e *Entry) {
	od.mu.Lock()
	defer od.mu.Unlock()
	if _, exists := od.entries[e.Index]; exists {
		od.logger.WithField("index", e.Index).Warn("overwriting OD entry")
	}
	od.entries[e.Index] = e
}

// Index returns the entry at the given index, or nil if absent.
func (od *ObjectDictionary) Index(index uint16) *Entry {
	od.mu.RLock()
	defer od.mu.RUnlock()
	return od.entries[index]
}

// Entries returns a snapshot of the index->entry map.
func (od *ObjectDictionary) Entries() map[uint16]*Entry {
	od.mu.RLock()
	defer od.mu.RUnlock()
	out := make(map[uint16]*Entry, len(od.entries))
	for k, v := range od.entries {
		out[k] = v
	}
	return out
}

// Read performs an access-class-checked, typed read and returns a decoded Go
// value (uint64, int64, float32, float64, or string).
func (od *ObjectDictionary) Read(index uint16, sub uint8) (any, error) {
	v, err := od.lookup(index, sub)
	if err != nil {
		return nil, err
	}
	if !v.Access.Readable() {
		return nil, plerr.NewOD(plerr.CodeAccessDenied, index, sub, "not readable")
	}
	return DecodeValue(v.Raw(), v.DataType)
}

// ReadRaw copies the current raw value into buf, returning the number of
// bytes copied. buf must be at least as large as the stored value.
func (od *ObjectDictionary) ReadRaw(index uint16, sub uint8, buf []byte) (int, error) {
	v, err := od.lookup(index, sub)
	if err != nil {
		return 0, err
	}
	if !v.Access.Readable() {
		return 0, plerr.NewOD(plerr.CodeAccessDenied, index, sub, "not readable")
	}
	raw := v.Raw()
	if len(buf) < len(raw) {
		return 0, plerr.NewOD(plerr.CodeBufferTooShort, index, sub, "")
	}
	n := copy(buf, raw)
	return n, nil
}

// Write performs the full write contract of spec.md §4.2: access-class
// check, type-size check, range check, atomic swap, then hooks. If a hook
// rejects the write, the previous value is restored and the hook's error is
// returned (spec.md §8 invariant: rejected writes leave the stored value
// unchanged).
func (od *ObjectDictionary) Write(index uint16, sub uint8, raw []byte) error {
	v, err := od.lookup(index, sub)
	if err != nil {
		return err
	}
	if !v.Access.Writable() {
		return plerr.NewOD(plerr.CodeAccessDenied, index, sub, "not writable")
	}
	if err := CheckSize(raw, v.DataType); err != nil {
		return err
	}
	if err := v.checkRange(raw); err != nil {
		return err
	}
	previous := v.Raw()
	v.setRaw(raw)

	entry := od.Index(index)
	if entry != nil {
		if err := entry.runHooks(sub, raw); err != nil {
			v.setRaw(previous)
			return err
		}
	}
	return nil
}

// WriteRaw is an alias for Write kept for symmetry with ReadRaw; both take
// and store raw wire bytes.
func (od *ObjectDictionary) WriteRaw(index uint16, sub uint8, raw []byte) error {
	return od.Write(index, sub, raw)
}

// WriteOrigin bypasses the access-class check (but not type/range checking
// or hooks), for internal writers that must update read-only cells: the DLL
// path applying an RPDO, the PDO engine snapshotting a TPDO source, or the
// NMT machine updating 0x1F8C. Grounded on the teacher's
// Entry.PutUintN(..., origin bool) pattern.
func (od *ObjectDictionary) WriteOrigin(index uint16, sub uint8, raw []byte) error {
	v, err := od.lookup(index, sub)
	if err != nil {
		return err
	}
	if err := CheckSize(raw, v.DataType); err != nil {
		return err
	}
	if err := v.checkRange(raw); err != nil {
		return err
	}
	previous := v.Raw()
	v.setRaw(raw)
	entry := od.Index(index)
	if entry != nil {
		if err := entry.runHooks(sub, raw); err != nil {
			v.setRaw(previous)
			return err
		}
	}
	return nil
}

// Subscribe registers a hook fired after every write to (index, sub),
// origin or not.
func (od *ObjectDictionary) Subscribe(index uint16, sub uint8, hook Hook) error {
	entry := od.Index(index)
	if entry == nil {
		return plerr.NewOD(plerr.CodeObjectNotFound, index, sub, "")
	}
	entry.AddHook(sub, hook)
	return nil
}

// SetStorage installs the non-volatile storage backend (§4.12,
// ObjectDictionaryStorage from original_source/hal.rs).
func (od *ObjectDictionary) SetStorage(s Storage) {
	od.mu.Lock()
	defer od.mu.Unlock()
	od.storage = s
}

func (od *ObjectDictionary) lookup(index uint16, sub uint8) (*Variable, error) {
	entry := od.Index(index)
	if entry == nil {
		return nil, plerr.NewOD(plerr.CodeObjectNotFound, index, sub, "")
	}
	return entry.Sub(sub)
}
