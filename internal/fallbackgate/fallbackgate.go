// Package fallbackgate provides the gate predicates spec §4.12 uses to
// switch a pipeline's processing chain based on the fallback
// controller's current state, grounded on
// original_source/core/audio/gate/sac_fallback_gate.c.
package fallbackgate

import "github.com/sparkmicro/audiocore/internal/fallback"

// IsFallbackOn gates a stage so it only runs while fallback is active.
// If controller is nil the gate fails closed (fallback considered
// off), matching the original's return_error=false default.
func IsFallbackOn(controller *fallback.Controller) func() bool {
	return func() bool {
		if controller == nil {
			return false
		}
		return controller.IsActive()
	}
}

// IsFallbackOff gates a stage so it only runs while fallback is
// inactive. If controller is nil the gate fails open (fallback
// considered off), matching the original's return_error=true default.
func IsFallbackOff(controller *fallback.Controller) func() bool {
	return func() bool {
		if controller == nil {
			return true
		}
		return !controller.IsActive()
	}
}
