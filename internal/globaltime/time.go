// Package globaltime is the single clock for wall-time reads, so every
// persisted and reported timestamp is UTC.
package globaltime

import "time"

func UTC() time.Time {
	return time.Now().UTC()
}
