package services

import "time"

// SetClock replaces the clock used for cache entry expiry.
func (s *CachedSearchService) SetClock(now func() time.Time) {
	s.now = now
}
