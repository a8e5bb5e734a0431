// Package lifecycle owns the press-and-hold dictation state machine: chord
// tracking, the permission gate, and lifecycle event emission.
package lifecycle

import "fmt"

// State is one dictation session phase.
type State string

// Signal is one state-machine input.
type Signal string

const (
	StateIdle               State = "idle"
	StateArmed              State = "armed"
	StateAwaitingPermission State = "awaiting-permission"
	StateRecording          State = "recording"
)

const (
	SignalArm     Signal = "arm"     // part of the chord went down
	SignalDisarm  Signal = "disarm"  // chord fully released before satisfy
	SignalHold    Signal = "hold"    // chord satisfied, permission already granted
	SignalAwait   Signal = "await"   // chord satisfied, consent outstanding
	SignalGrant   Signal = "grant"   // pending permission granted
	SignalDeny    Signal = "deny"    // pending permission denied
	SignalRelease Signal = "release" // chord released while recording
	SignalCancel  Signal = "cancel"  // abort from any held state
)

// Transition applies one signal to the current state. It is pure; the manager
// decides which signal to send and performs all side effects.
func Transition(current State, sig Signal) (State, error) {
	if sig == SignalCancel {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		if sig == SignalArm {
			return StateArmed, nil
		}
	case StateArmed:
		switch sig {
		case SignalDisarm:
			return StateIdle, nil
		case SignalHold:
			return StateRecording, nil
		case SignalAwait:
			return StateAwaitingPermission, nil
		}
	case StateAwaitingPermission:
		switch sig {
		case SignalGrant:
			return StateRecording, nil
		case SignalDeny:
			return StateIdle, nil
		}
	case StateRecording:
		if sig == SignalRelease {
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, sig)
}
