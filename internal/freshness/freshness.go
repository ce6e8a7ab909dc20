// Package freshness decides whether a weather observation can be served without refresh.
package freshness

import "time"

// Window is how long an observation stays usable after it was generated.
// Cache entries are written with this TTL as well.
const Window = 30 * time.Minute

// IsFresh reports whether an observation generated at ts is still usable at now.
func IsFresh(ts, now time.Time) bool {
	return now.Sub(ts) < Window
}
