// Package system adapts the process wall clock to scraper.Clock.
package system

import "time"

// Clock reads the real time. The zero value is ready to use; code that needs
// deterministic time injects its own scraper.Clock in tests instead.
type Clock struct{}

// Now returns the current time in UTC, so persisted timestamps compare
// consistently regardless of host timezone.
func (Clock) Now() time.Time { return time.Now().UTC() }
