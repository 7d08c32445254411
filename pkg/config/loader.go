// Package config is the bring-up/test configuration layer: a lightweight
// ini-file format, loaded with gopkg.in/ini.v1 the same way an EDS file is
// read, that seeds an *od.ObjectDictionary with default values, access
// rules and PDO-mapping eligibility for tests, examples and cmd/ tools. It
// is explicitly not the XDC/XML device-description parser.
package config

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/powerlink-go/plstack/pkg/od"
)

var (
	indexSectionRe = regexp.MustCompile(`^[0-9A-Fa-f]{1,4}$`)
	subSectionRe   = regexp.MustCompile(`^([0-9A-Fa-f]{1,4})sub([0-9A-Fa-f]{1,2})$`)
	nodeIDToken    = regexp.MustCompile(`\+?\$NODEID\+?`)
)

// LoadObjectDictionary reads path and returns a fresh *od.ObjectDictionary
// seeded from it. nodeID substitutes any DefaultValue containing $NODEID.
// Callers typically call od.BuildMandatory first and use this only to add
// device-specific entries (process image, PDO mappings) on top of that
// hardcoded mandatory-object bring-up.
func LoadObjectDictionary(path string, nodeID uint8, logger *log.Entry) (*od.ObjectDictionary, error) {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	dict := od.New(logger)
	if err := populate(dict, file, nodeID); err != nil {
		return nil, err
	}
	return dict, nil
}

// populate walks every base-index section (VAR entries) and every group of
// "<index>sub<N>" sections (ARRAY/RECORD entries), building and installing
// one od.Entry per base index.
func populate(dict *od.ObjectDictionary, file *ini.File, nodeID uint8) error {
	subsByIndex := map[uint16][]*ini.Section{}
	var baseIndexes []uint16
	seenBase := map[uint16]bool{}

	for _, section := range file.Sections() {
		name := section.Name()
		if m := subSectionRe.FindStringSubmatch(name); m != nil {
			idx, err := strconv.ParseUint(m[1], 16, 16)
			if err != nil {
				return fmt.Errorf("config: bad sub-section index %q: %w", name, err)
			}
			// sub0 (NrOfEntries) is synthesised by od.NewArrayEntry/
			// NewRecordEntry from the real element count; an explicit
			// "<index>sub0" section (common in hand-written EDS files) only
			// documents the count and is not itself installed.
			if m[2] == "0" {
				continue
			}
			subsByIndex[uint16(idx)] = append(subsByIndex[uint16(idx)], section)
			continue
		}
		if indexSectionRe.MatchString(name) {
			idx, err := strconv.ParseUint(name, 16, 16)
			if err != nil {
				return fmt.Errorf("config: bad section index %q: %w", name, err)
			}
			if !seenBase[uint16(idx)] {
				seenBase[uint16(idx)] = true
				baseIndexes = append(baseIndexes, uint16(idx))
			}
		}
	}

	for _, idx := range baseIndexes {
		base, err := file.GetSection(fmt.Sprintf("%X", idx))
		if err != nil {
			return err
		}
		objType := strings.ToUpper(base.Key("ObjectType").MustString("VAR"))
		name := base.Key("Name").MustString(fmt.Sprintf("obj%04X", idx))

		switch objType {
		case "ARRAY", "RECORD":
			subs, ok := subsByIndex[idx]
			if !ok {
				return fmt.Errorf("config: %04X declares ObjectType %s with no subN sections", idx, objType)
			}
			vars := make([]*od.Variable, 0, len(subs))
			for _, s := range subs {
				m := subSectionRe.FindStringSubmatch(s.Name())
				sub, err := strconv.ParseUint(m[2], 16, 8)
				if err != nil {
					return fmt.Errorf("config: bad sub-index in %q: %w", s.Name(), err)
				}
				v, err := buildVariable(s, uint8(sub), nodeID)
				if err != nil {
					return fmt.Errorf("config: %04Xsub%d: %w", idx, sub, err)
				}
				vars = append(vars, v)
			}
			if objType == "ARRAY" {
				dict.AddEntry(od.NewArrayEntry(idx, name, vars))
			} else {
				dict.AddEntry(od.NewRecordEntry(idx, name, vars))
			}

		default:
			v, err := buildVariable(base, 0, nodeID)
			if err != nil {
				return fmt.Errorf("config: %04X: %w", idx, err)
			}
			dict.AddEntry(od.NewVarEntry(idx, name, v))
		}
	}
	return nil
}

// buildVariable reads one section's AccessType/PDOMapping/DataType/
// DefaultValue/HighLimit/LowLimit keys, the field set an EDS
// [index] or [index]sub[n] section carries.
func buildVariable(section *ini.Section, sub uint8, nodeID uint8) (*od.Variable, error) {
	name := section.Key("Name").MustString(section.Name())

	dtRaw, err := section.GetKey("DataType")
	if err != nil {
		return nil, fmt.Errorf("missing DataType: %w", err)
	}
	dtVal, err := strconv.ParseInt(dtRaw.Value(), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DataType: %w", err)
	}
	dataType := od.DataType(dtVal)

	access := parseAccessType(section.Key("AccessType").MustString("rw"))
	pdoMap := parsePDOMap(section)

	def := []byte{}
	if key, err := section.GetKey("DefaultValue"); err == nil {
		def, err = encodeDefault(key.Value(), dataType, nodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DefaultValue: %w", err)
		}
	} else if size, fixed := dataType.FixedSize(); fixed {
		def = make([]byte, size)
	}

	v := od.NewVariable(name, sub, dataType, access, pdoMap, def)

	if hasLow, hasHigh := section.HasKey("LowLimit"), section.HasKey("HighLimit"); hasLow || hasHigh {
		low, high, err := parseLimits(section, dataType)
		if err != nil {
			return nil, err
		}
		v.SetLimits(low, high)
	}
	return v, nil
}

func parseAccessType(s string) od.AccessClass {
	switch strings.ToLower(s) {
	case "ro":
		return od.AccessReadOnly
	case "wo":
		return od.AccessWriteOnly
	case "const":
		return od.AccessConst
	default:
		return od.AccessReadWrite
	}
}

// parsePDOMap accepts either an explicit "PDOMap" name (none/default/
// optional/tpdo/rpdo) or a plain boolean "PDOMapping" key, defaulting to
// PDOMapNone when neither is present.
func parsePDOMap(section *ini.Section) od.PDOMap {
	if key, err := section.GetKey("PDOMap"); err == nil {
		switch strings.ToLower(key.Value()) {
		case "default":
			return od.PDOMapDefault
		case "optional":
			return od.PDOMapOptional
		case "tpdo":
			return od.PDOMapTPDOOnly
		case "rpdo":
			return od.PDOMapRPDOOnly
		default:
			return od.PDOMapNone
		}
	}
	if key, err := section.GetKey("PDOMapping"); err == nil {
		if mapped, err := key.Bool(); err == nil && mapped {
			return od.PDOMapDefault
		}
	}
	return od.PDOMapNone
}

// encodeDefault parses the literal, adds nodeID when the value referenced
// $NODEID (dropped otherwise), and packs little-endian at the width
// DataType implies.
func encodeDefault(raw string, dataType od.DataType, nodeID uint8) ([]byte, error) {
	offset := uint64(nodeID)
	if strings.Contains(raw, "$NODEID") {
		raw = nodeIDToken.ReplaceAllString(raw, "")
	} else {
		offset = 0
	}
	if raw == "" {
		raw = "0"
	}

	switch dataType {
	case od.VISIBLE_STRING, od.OCTET_STRING:
		return []byte(raw), nil
	case od.DOMAIN:
		return []byte{}, nil
	case od.REAL32, od.REAL64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		if dataType == od.REAL32 {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
			return b, nil
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(f))
		return b, nil
	default:
		parsed, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return nil, err
		}
		return od.EncodeUint(parsed+offset, dataType), nil
	}
}

func parseLimits(section *ini.Section, dataType od.DataType) ([]byte, []byte, error) {
	low, high := uint64(0), uint64(0)
	if key, err := section.GetKey("LowLimit"); err == nil {
		low, err = strconv.ParseUint(key.Value(), 0, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse LowLimit: %w", err)
		}
	}
	if key, err := section.GetKey("HighLimit"); err == nil {
		high, err = strconv.ParseUint(key.Value(), 0, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse HighLimit: %w", err)
		}
	}
	return od.EncodeUint(low, dataType), od.EncodeUint(high, dataType), nil
}
