package nmt

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
)

// base holds the state and OD wiring shared by CNMachine and MNMachine:
// current/previous state, the object dictionary the current state is
// mirrored into (0x1F8C), and a callback fired on every transition.
// Grounded on the teacher's NMT struct (operatingState/operatingStatePrev/
// callback fields), generalised from a flat CANopen state byte to the
// richer State enum.
type base struct {
	mu sync.Mutex

	dict     *od.ObjectDictionary
	logger   *log.Entry
	current  State
	previous State
	callback func(State)
}

func newBase(dict *od.ObjectDictionary, logger *log.Entry) base {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	return base{dict: dict, logger: logger, current: StateInitialising, previous: StateInitialising}
}

// SetCallback installs a hook invoked with the new state after every
// transition, mirroring the teacher's NMT.callback field.
func (b *base) SetCallback(cb func(State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = cb
}

// CurrentState returns the machine's current state.
func (b *base) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// transition moves to next, mirrors the new state's wire byte into
// 0x1F8C when a dictionary is attached, and fires the callback. Caller
// must hold b.mu.
func (b *base) transition(next State) {
	if next == b.current {
		return
	}
	b.previous, b.current = b.current, next
	if b.dict != nil {
		wire := next.WireByte()
		if wire != 0 {
			if err := b.dict.WriteOrigin(od.IdxNMTCurrentState, 0, []byte{wire}); err != nil {
				b.logger.WithError(err).Warn("nmt: failed to mirror state into 0x1F8C")
			}
		}
	}
	b.logger.WithFields(log.Fields{"from": b.previous, "to": b.current}).Debug("nmt state changed")
	if b.callback != nil {
		cb := b.callback
		state := b.current
		b.mu.Unlock()
		cb(state)
		b.mu.Lock()
	}
}
