package scheduler

import "github.com/marinaops/boatcare/internal/model"

// Windows are half-open minute intervals [start, start+dur) on one calendar
// day. A missing duration is a zero-width instant: it collides only when it
// falls strictly inside another window, and nothing collides with it.
func overlaps(aStart, aDur, bStart, bDur int64) bool {
	return aStart < bStart+bDur && bStart < aStart+aDur
}

// firstConflict returns the id of the first existing appointment whose
// window overlaps the candidate window. existing must be ordered (the
// repository orders by start minute, then id) so the reported collision is
// stable across retries.
func firstConflict(startMinute int, durationMin int64, existing []model.Appointment) (int64, bool) {
	for _, e := range existing {
		if overlaps(int64(startMinute), durationMin, int64(e.StartMinute), e.Duration()) {
			return e.ID, true
		}
	}
	return 0, false
}
