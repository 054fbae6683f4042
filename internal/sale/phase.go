package sale

import (
	"fmt"
	"strings"
)

// Phase is a stage of the sale. Phases are totally ordered and only ever
// move forward: Early → General → Open.
type Phase uint8

const (
	PhaseEarly Phase = iota
	PhaseGeneral
	PhaseOpen
)

var phaseNames = [...]string{"early", "general", "open"}

// String returns the lowercase phase name.
func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
	return phaseNames[p]
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p <= PhaseOpen
}

// Before reports whether p comes strictly before q.
func (p Phase) Before(q Phase) bool {
	return p < q
}

// ParsePhase parses a phase name or its numeric index (0, 1, 2).
func ParsePhase(s string) (Phase, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range phaseNames {
		if s == name || s == fmt.Sprint(i) {
			return Phase(i), nil
		}
	}
	// og / whitelist / public naming.
	switch s {
	case "og":
		return PhaseEarly, nil
	case "whitelist", "allowlist":
		return PhaseGeneral, nil
	case "public":
		return PhaseOpen, nil
	}
	return 0, fmt.Errorf("unknown phase %q (use early, general or open)", s)
}

// Status is the externally visible sale state, derived from the pause flag
// and the phase. It is never stored.
type Status string

const (
	StatusPaused  Status = "paused"
	StatusEarly   Status = "early"
	StatusGeneral Status = "general"
	StatusOpen    Status = "open"
)

func statusOf(paused bool, p Phase) Status {
	if paused {
		return StatusPaused
	}
	switch p {
	case PhaseGeneral:
		return StatusGeneral
	case PhaseOpen:
		return StatusOpen
	default:
		return StatusEarly
	}
}
