package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stillalive/api/models"
)

// DispatchResult aggregates the outcome of one notification fan-out.
type DispatchResult struct {
	Sent   int
	Failed int
}

// Dispatch sends one notification per squad member concurrently. A
// failure for one recipient never blocks or fails the others; failures
// are counted, not retried.
func (s *Sweeper) Dispatch(ctx context.Context, user models.User, squad []models.SquadMember, overdueBy time.Duration) DispatchResult {
	var sent, failed atomic.Int32

	var g errgroup.Group
	for _, member := range squad {
		member := member
		g.Go(func() error {
			if err := s.mailer.SendMissedCheckIn(ctx, member.Email, user, overdueBy); err != nil {
				failed.Add(1)
				s.log.Warnf("sweep: alert mail to %s for user=%s failed: %v", member.Email, user.DisplayName, err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return DispatchResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
}
