package sale

// advancePhase moves h to target. target must be a defined phase strictly
// after the current one; advancing to the current phase is not a no-op.
func advancePhase(h *Header, target Phase) error {
	if !target.Valid() || !h.Phase.Before(target) {
		return ErrInvalidPhaseTransition
	}
	h.Phase = target
	return nil
}

// setPaused sets the pause flag and reports whether it changed.
func setPaused(h *Header, paused bool) bool {
	if h.Paused == paused {
		return false
	}
	h.Paused = paused
	return true
}

// requirePhase rejects requests that arrive before phase has started.
func requirePhase(h *Header, phase Phase) error {
	if h.Phase.Before(phase) {
		return ErrPhaseNotStartedYet
	}
	return nil
}
