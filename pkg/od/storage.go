package od

import "github.com/powerlink-go/plstack/pkg/plerr"

// Storage is the non-volatile persistence boundary for OD values that
// survive a reset (spec.md §4.2's "store/restore" entries 0x1010/0x1011),
// supplemented from original_source/hal.rs's ObjectDictionaryStorage trait
// (§4.12 of the expanded spec): a node's embedded flash, a file on disk, or
// (in tests) an in-memory map can all satisfy it.
type Storage interface {
	// Load returns the persisted raw bytes for (index, sub), or ok=false if
	// nothing has been persisted for that cell yet.
	Load(index uint16, sub uint8) (value []byte, ok bool)
	// Save persists raw bytes for (index, sub).
	Save(index uint16, sub uint8, value []byte) error
	// Clear removes everything persisted, used by the 0x1011 restore-all
	// signature-match path.
	Clear() error
}

// MemStorage is a process-local Storage, used by tests and by nodes that
// have no non-volatile medium configured.
type MemStorage struct {
	cells map[storageKey][]byte
}

type storageKey struct {
	index uint16
	sub   uint8
}

// NewMemStorage returns an empty in-memory Storage.
func NewMemStorage() *MemStorage {
	return &MemStorage{cells: map[storageKey][]byte{}}
}

func (m *MemStorage) Load(index uint16, sub uint8) ([]byte, bool) {
	v, ok := m.cells[storageKey{index, sub}]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (m *MemStorage) Save(index uint16, sub uint8, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.cells[storageKey{index, sub}] = cp
	return nil
}

func (m *MemStorage) Clear() error {
	m.cells = map[storageKey][]byte{}
	return nil
}

// restoreDefaultsSignature is the ASCII "load" magic value DS 301 §7.5.3
// requires be written to 0x1011 sub-index 1 to authorize a restore.
const restoreDefaultsSignature uint32 = 0x64616F6C // "load" little-endian

// RestoreDefaults resets every entry with a stored default back to that
// default, clears persisted storage, and returns the number of cells reset.
// It implements the 0x1011 RestoreDefaultParameters behaviour (spec.md
// §4.2).
func (od *ObjectDictionary) RestoreDefaults(signature uint32) (int, error) {
	if signature != restoreDefaultsSignature {
		return 0, plerr.NewOD(plerr.CodeFieldOutOfRange, IdxRestoreDefaults, 1, "signature mismatch")
	}
	od.mu.RLock()
	entries := make([]*Entry, 0, len(od.entries))
	for _, e := range od.entries {
		entries = append(entries, e)
	}
	od.mu.RUnlock()

	reset := 0
	for _, e := range entries {
		e.mu.RLock()
		subs := append([]*Variable(nil), e.subs...)
		e.mu.RUnlock()
		for _, v := range subs {
			v.setRaw(v.defaultValue)
			reset++
		}
	}
	if od.storage != nil {
		if err := od.storage.Clear(); err != nil {
			return reset, err
		}
	}
	return reset, nil
}
