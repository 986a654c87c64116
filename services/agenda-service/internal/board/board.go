package board

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// Feeds is the slice of the calendar client the board reads from.
type Feeds interface {
	Range(ctx context.Context, from, to schedule.DateKey) ([]schedule.Appointment, error)
	Today(ctx context.Context) ([]schedule.Appointment, error)
	Upcoming(ctx context.Context) ([]schedule.Appointment, error)
}

// Board holds the live appointment index. Writers merge onto a clone
// and swap the pointer, so a snapshot handed to a reader is never
// mutated under it.
type Board struct {
	feeds Feeds

	mu  sync.Mutex
	idx *schedule.Index
}

func New(feeds Feeds) *Board {
	return &Board{feeds: feeds, idx: schedule.NewIndex()}
}

// Refresh pulls the three feeds concurrently, folding each one in as
// it arrives. Merge is idempotent and order-independent, so overlap
// between the feeds and arrival order are both harmless.
func (b *Board) Refresh(ctx context.Context, from, to schedule.DateKey) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appts, err := b.feeds.Range(ctx, from, to)
		if err != nil {
			return err
		}
		b.Absorb(appts...)
		return nil
	})
	g.Go(func() error {
		appts, err := b.feeds.Today(ctx)
		if err != nil {
			return err
		}
		b.Absorb(appts...)
		return nil
	})
	g.Go(func() error {
		appts, err := b.feeds.Upcoming(ctx)
		if err != nil {
			return err
		}
		b.Absorb(appts...)
		return nil
	})
	return g.Wait()
}

// Absorb folds records into the board: authoritative mutation
// responses, consumed events, and feed pages all come through here.
func (b *Board) Absorb(appts ...schedule.Appointment) {
	if len(appts) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idx = schedule.Merge(b.idx, appts)
}

// Snapshot returns the current index. The caller may read it freely;
// it will never change.
func (b *Board) Snapshot() *schedule.Index {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idx
}

// Day returns the day's appointments in start order.
func (b *Board) Day(key schedule.DateKey) []schedule.Appointment {
	return b.Snapshot().Day(key)
}
