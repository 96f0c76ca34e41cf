// Package machine holds the immutable value records describing the last known
// state of a CNC controller: its active state label and machine/work positions.
package machine

import (
	"fmt"
	"strings"
)

// Position is a 3-axis coordinate in controller units (mm or inch).
//
// Position is a value type. Holders replace it wholesale instead of mutating
// individual axes.
type Position struct {
	X float64
	Y float64
	Z float64
}

// Origin is the (0, 0, 0) coordinate.
var Origin = Position{}

// NewPosition creates a Position.
func NewPosition(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

// Add returns p + o.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Sub returns p - o.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// IsOrigin reports whether p is the origin.
func (p Position) IsOrigin() bool { return p == Origin }

func (p Position) String() string {
	return fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f", p.X, p.Y, p.Z)
}

// ActiveState is the controller's last reported state label, e.g. "Idle".
// The empty value means no status has been reported yet.
type ActiveState string

// Active states reported by GRBL controllers.
const (
	Unknown ActiveState = ""
	Idle    ActiveState = "Idle"
	Run     ActiveState = "Run"
	Hold    ActiveState = "Hold"
	Jog     ActiveState = "Jog"
	Alarm   ActiveState = "Alarm"
	Door    ActiveState = "Door"
	Check   ActiveState = "Check"
	Home    ActiveState = "Home"
	Sleep   ActiveState = "Sleep"
)

var knownStates = map[ActiveState]struct{}{
	Idle: {}, Run: {}, Hold: {}, Jog: {}, Alarm: {}, Door: {}, Check: {}, Home: {}, Sleep: {},
}

// ParseActiveState maps a state label to an ActiveState. Sub-state suffixes
// such as "Hold:0" or "Door:1" are dropped. Labels are matched case-insensitively;
// unknown labels are returned unchanged.
func ParseActiveState(label string) ActiveState {
	label = strings.TrimSpace(label)
	if i := strings.IndexByte(label, ':'); i >= 0 {
		label = label[:i]
	}
	for st := range knownStates {
		if strings.EqualFold(string(st), label) {
			return st
		}
	}

	return ActiveState(label)
}

// IsKnown reports whether s is one of the states defined by GRBL.
func (s ActiveState) IsKnown() bool {
	_, ok := knownStates[s]
	return ok
}

func (s ActiveState) String() string { return string(s) }

// Status is a snapshot of the controller state.
type Status struct {
	State      ActiveState
	MachinePos Position
	WorkPos    Position
}

// WithState returns a copy of s with the state replaced.
func (s Status) WithState(state ActiveState) Status {
	s.State = state
	return s
}

// WithMachinePos returns a copy of s with the machine position replaced.
func (s Status) WithMachinePos(p Position) Status {
	s.MachinePos = p
	return s
}

// WithWorkPos returns a copy of s with the work position replaced.
func (s Status) WithWorkPos(p Position) Status {
	s.WorkPos = p
	return s
}
