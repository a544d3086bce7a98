package auth

import "time"

func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}
