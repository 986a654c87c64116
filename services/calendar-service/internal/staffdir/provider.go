package staffdir

import (
	"context"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// Provider answers whether a staff member can be booked on a given
// day. A false answer with nil error is authoritative; a non-nil error
// means the directory could not be reached and the caller must not
// treat the staff member as unavailable.
type Provider interface {
	StaffAvailable(ctx context.Context, staffID string, date schedule.DateKey) (bool, error)
}

type staticProvider struct{}

// NewStaticProvider treats every staff member as bookable every day.
// Single-tenant deployments without a directory service run on this.
func NewStaticProvider() Provider {
	return &staticProvider{}
}

func (p *staticProvider) StaffAvailable(_ context.Context, _ string, _ schedule.DateKey) (bool, error) {
	return true, nil
}
