package grbl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-grbl/machine"
)

// ErrMalformedStatus is returned by ParseStatus for lines that are not a
// decodable status report.
var ErrMalformedStatus = errors.New("grbl: malformed status report")

// StatusReport is a decoded real-time status report.
//
// Fields the controller did not report keep their zero value; the Has*
// flags tell them apart from reported zeros.
type StatusReport struct {
	State machine.ActiveState
	// SubState is the numeric suffix of "Hold:0" or "Door:1", or -1.
	SubState int

	MachinePos    machine.Position
	HasMachinePos bool
	WorkPos       machine.Position
	HasWorkPos    bool
	WorkOffset    machine.Position
	HasWorkOffset bool

	FeedRate     float64
	SpindleSpeed float64
	HasFeed      bool

	// PlannerBlocks and RxBytes are the available planner blocks and serial
	// RX buffer bytes ("Bf" on 1.1, "Buf"/"RX" on 0.9).
	PlannerBlocks int
	RxBytes       int
	HasBuffer     bool

	LineNumber    int
	HasLineNumber bool

	// Pins lists the triggered input pins, e.g. "XZP".
	Pins string
	// Overrides holds the feed, rapid and spindle override percentages.
	Overrides    [3]int
	HasOverrides bool
	// Accessories lists the accessory states, e.g. "SF".
	Accessories string
}

// ParseStatus decodes a status report in GRBL 1.1 format
// ("<Idle|MPos:0.000,0.000,0.000|FS:0,0>") or GRBL 0.9 format
// ("<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>").
func ParseStatus(line string) (StatusReport, error) {
	rep := StatusReport{SubState: -1}

	line = strings.TrimSpace(line)
	if len(line) < 3 || line[0] != '<' || line[len(line)-1] != '>' {
		return rep, fmt.Errorf("%w: %q", ErrMalformedStatus, line)
	}
	body := line[1 : len(line)-1]

	var stateLabel string
	var fields []statusField
	if strings.Contains(body, "|") {
		stateLabel, fields = splitFields11(body)
	} else {
		stateLabel, fields = splitFields09(body)
	}

	if stateLabel == "" {
		return rep, fmt.Errorf("%w: missing state in %q", ErrMalformedStatus, line)
	}
	if i := strings.IndexByte(stateLabel, ':'); i >= 0 {
		sub, err := strconv.Atoi(stateLabel[i+1:])
		if err != nil {
			return rep, fmt.Errorf("%w: sub-state %q", ErrMalformedStatus, stateLabel)
		}
		rep.SubState = sub
	}
	rep.State = machine.ParseActiveState(stateLabel)

	for _, f := range fields {
		if err := rep.apply(f); err != nil {
			return rep, fmt.Errorf("%w: field %s: %w", ErrMalformedStatus, f.key, err)
		}
	}

	return rep, nil
}

type statusField struct {
	key    string
	values []string
}

// splitFields11 splits "Idle|MPos:1,2,3|FS:0,0".
func splitFields11(body string) (string, []statusField) {
	parts := strings.Split(body, "|")
	fields := make([]statusField, 0, len(parts)-1)
	for _, p := range parts[1:] {
		key, val, _ := strings.Cut(p, ":")
		fields = append(fields, statusField{key: key, values: strings.Split(val, ",")})
	}

	return parts[0], fields
}

// splitFields09 splits "Idle,MPos:1,2,3,WPos:1,2,3". A token holding a colon
// starts a new field, the tokens after it are its further values.
func splitFields09(body string) (string, []statusField) {
	tokens := strings.Split(body, ",")
	var fields []statusField
	for _, tok := range tokens[1:] {
		if key, val, ok := strings.Cut(tok, ":"); ok {
			fields = append(fields, statusField{key: key, values: []string{val}})
			continue
		}
		if len(fields) > 0 {
			last := &fields[len(fields)-1]
			last.values = append(last.values, tok)
		}
	}

	return tokens[0], fields
}

func (r *StatusReport) apply(f statusField) error {
	var err error

	switch f.key {
	case "MPos":
		r.MachinePos, err = parsePosition(f.values)
		r.HasMachinePos = err == nil
	case "WPos":
		r.WorkPos, err = parsePosition(f.values)
		r.HasWorkPos = err == nil
	case "WCO":
		r.WorkOffset, err = parsePosition(f.values)
		r.HasWorkOffset = err == nil
	case "FS":
		var v []float64
		if v, err = parseFloats(f.values, 2); err == nil {
			r.FeedRate, r.SpindleSpeed, r.HasFeed = v[0], v[1], true
		}
	case "F":
		var v []float64
		if v, err = parseFloats(f.values, 1); err == nil {
			r.FeedRate, r.HasFeed = v[0], true
		}
	case "Bf":
		var v []int
		if v, err = parseInts(f.values, 2); err == nil {
			r.PlannerBlocks, r.RxBytes, r.HasBuffer = v[0], v[1], true
		}
	case "Buf":
		var v []int
		if v, err = parseInts(f.values, 1); err == nil {
			r.PlannerBlocks, r.HasBuffer = v[0], true
		}
	case "RX":
		var v []int
		if v, err = parseInts(f.values, 1); err == nil {
			r.RxBytes, r.HasBuffer = v[0], true
		}
	case "Ln":
		var v []int
		if v, err = parseInts(f.values, 1); err == nil {
			r.LineNumber, r.HasLineNumber = v[0], true
		}
	case "Ov":
		var v []int
		if v, err = parseInts(f.values, 3); err == nil {
			copy(r.Overrides[:], v)
			r.HasOverrides = true
		}
	case "Pn":
		r.Pins = strings.Join(f.values, "")
	case "A":
		r.Accessories = strings.Join(f.values, "")
	}

	return err
}

// parsePosition reads the first three axes; extra axes are ignored.
func parsePosition(values []string) (machine.Position, error) {
	v, err := parseFloats(values, 3)
	if err != nil {
		return machine.Origin, err
	}

	return machine.NewPosition(v[0], v[1], v[2]), nil
}

func parseFloats(values []string, want int) ([]float64, error) {
	if len(values) < want {
		return nil, fmt.Errorf("want %d values, got %d", want, len(values))
	}
	out := make([]float64, want)
	for i := range out {
		f, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}

	return out, nil
}

func parseInts(values []string, want int) ([]int, error) {
	if len(values) < want {
		return nil, fmt.Errorf("want %d values, got %d", want, len(values))
	}
	out := make([]int, want)
	for i := range out {
		n, err := strconv.Atoi(strings.TrimSpace(values[i]))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}

	return out, nil
}
