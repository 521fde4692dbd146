package exam

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically force-expires overdue attempts so no sitting
// stays in_progress forever after a client crash or disconnect.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run blocks until ctx is done. Callers start it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.svc.ExpireOverdueAttempts(ctx)
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: expired %d overdue attempt(s)", n)
			}
		}
	}
}
