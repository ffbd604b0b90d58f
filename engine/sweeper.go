package engine

import (
	"log"
	"time"
)

// RunSweeper polls TryEndCycle at the given interval so an inactive cycle
// settles even when no external caller triggers it. It blocks until done
// is closed. External triggers through the RPC surface remain valid and
// race harmlessly with the sweeper: whichever fires first settles, the
// other no-ops.
func (s *Service) RunSweeper(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := s.TryEndCycle(); err != nil {
				log.Printf("[engine] cycle sweep error: %v", err)
			}
		}
	}
}
