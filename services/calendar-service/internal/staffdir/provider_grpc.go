//go:build protogen

package staffdir

import (
	"context"
	"log/slog"
	"time"

	"github.com/avery-cole/frontdesk/libs/grpcx"
	"github.com/avery-cole/frontdesk/libs/schedule"
	staffv1 "github.com/avery-cole/frontdesk/protos/gen/staff/v1"
)

type grpcProvider struct {
	client staffv1.StaffDirectoryClient
}

func NewDirectoryProvider(logger *slog.Logger, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc staff directory unavailable, using static provider", "err", err)
		return NewStaticProvider(), nil
	}

	logger.Info("grpc staff directory enabled", "addr", addr)
	return &grpcProvider{client: staffv1.NewStaffDirectoryClient(conn)}, nil
}

func (p *grpcProvider) StaffAvailable(ctx context.Context, staffID string, date schedule.DateKey) (bool, error) {
	resp, err := p.client.CheckAvailability(ctx, &staffv1.CheckAvailabilityRequest{
		StaffId: staffID,
		Date:    string(date),
	})
	if err != nil {
		return false, err
	}
	return resp.GetAvailable(), nil
}
