package errctrl

import (
	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
)

// ErrorKind names one DLL error counted under spec.md §4.9's table. The
// MN and CN share the same kind set; which kinds are meaningful for a
// given role is a matter of which ones the DLL cycle engine observes, not
// a distinction this package makes.
type ErrorKind uint8

const (
	LossOfSoC ErrorKind = iota
	LossOfPReq
	LossOfPRes
	CRCError
	Collision
	CycleTimeExceeded
)

var kindNames = map[ErrorKind]string{
	LossOfSoC:         "LossOfSoC",
	LossOfPReq:        "LossOfPReq",
	LossOfPRes:        "LossOfPRes",
	CRCError:          "CRCError",
	Collision:         "Collision",
	CycleTimeExceeded: "CycleTimeExceeded",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// odIndex maps a kind to its DLL error threshold record, the 0x1C0A-0x1C0F
// range od.BuildMandatory instantiates via buildDLLErrorThreshold.
var odIndex = map[ErrorKind]uint16{
	LossOfSoC:         0x1C0A,
	LossOfPReq:        0x1C0B,
	LossOfPRes:        0x1C0C,
	CRCError:          0x1C0D,
	Collision:         0x1C0E,
	CycleTimeExceeded: 0x1C0F,
}

const (
	subThreshold  uint8 = 1
	subCumulative uint8 = 2
)

// Handler owns one Counter per ErrorKind for a single node, mirrors each
// Counter's cumulative value into its OD diagnostic entry, and keeps the
// Counter's threshold in sync with OD-configured writes to the entry's
// Threshold sub-index (spec.md §4.2's write-hook mechanism, the same
// pattern the teacher's NMT uses for its heartbeat-period entry).
type Handler struct {
	dict     *od.ObjectDictionary
	logger   *log.Entry
	counters map[ErrorKind]*Counter
}

// NewHandler builds a Handler for every ErrorKind, seeding each Counter's
// threshold from the OD's current value (od.BuildMandatory defaults it to
// 15) and subscribing to future threshold writes.
func NewHandler(dict *od.ObjectDictionary, logger *log.Entry) *Handler {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	h := &Handler{dict: dict, logger: logger, counters: make(map[ErrorKind]*Counter, len(odIndex))}

	for kind, idx := range odIndex {
		threshold := uint32(15)
		if dict != nil {
			if raw, err := dict.Read(idx, subThreshold); err == nil {
				if v, ok := raw.(uint64); ok {
					threshold = uint32(v)
				}
			}
		}
		counter := NewCounter(threshold)
		h.counters[kind] = counter

		kind, idx := kind, idx // capture for closure
		if dict != nil {
			err := dict.Subscribe(idx, subThreshold, func(_ uint16, _ uint8, newValue []byte) error {
				v, err := od.DecodeValue(newValue, od.UNSIGNED32)
				if err != nil {
					return err
				}
				counter.SetThreshold(uint32(v.(uint64)))
				return nil
			})
			if err != nil {
				logger.WithField("kind", kind).WithError(err).Warn("errctrl: failed to subscribe threshold hook")
			}
		}
	}
	return h
}

// Observe records one occurrence of kind, mirrors the new cumulative value
// into the OD, and reports whether this observation newly crossed the
// threshold.
func (h *Handler) Observe(kind ErrorKind) bool {
	counter := h.counters[kind]
	crossed := counter.Observe()
	h.mirror(kind, counter)
	if crossed {
		h.logger.WithField("kind", kind).Warn("errctrl: threshold crossed")
	}
	return crossed
}

// Decay ages kind's counter by one error-free cycle. The DLL cycle engine
// calls this once per cycle for each error kind it did not observe this
// cycle.
func (h *Handler) Decay(kind ErrorKind) {
	counter := h.counters[kind]
	counter.Decay()
	h.mirror(kind, counter)
}

// Counter returns the live Counter for kind, for callers that need the raw
// cumulative/threshold values (e.g. a diagnostic read path).
func (h *Handler) Counter(kind ErrorKind) *Counter {
	return h.counters[kind]
}

func (h *Handler) mirror(kind ErrorKind, counter *Counter) {
	if h.dict == nil {
		return
	}
	idx := odIndex[kind]
	if err := h.dict.WriteOrigin(idx, subCumulative, od.EncodeUint(uint64(counter.Value()), od.UNSIGNED32)); err != nil {
		h.logger.WithField("kind", kind).WithError(err).Warn("errctrl: failed to mirror cumulative count")
	}
}
