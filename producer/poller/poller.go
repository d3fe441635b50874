// Package poller waits for the public IP address reported by a source to change.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/database64128/dyns-go/producer"
	"github.com/database64128/dyns-go/tslog"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 5 * time.Minute

// Poller polls a source at a fixed interval until the reported address changes.
//
// It is not safe for concurrent use.
type Poller struct {
	interval time.Duration
	source   producer.Source
	logger   *tslog.Logger

	// OnPoll, if not nil, is called after every poll with the result.
	OnPoll func(ip string, err error)
}

// New creates a new [Poller].
// If interval is not positive, [DefaultInterval] is used.
func New(interval time.Duration, source producer.Source, logger *tslog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval: interval,
		source:   source,
		logger:   logger,
	}
}

// Interval returns the poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Snapshot exposes the inner source's Snapshot method.
func (p *Poller) Snapshot(ctx context.Context) (string, error) {
	ip, err := p.source.Snapshot(ctx)
	if p.OnPoll != nil {
		p.OnPoll(ip, err)
	}
	return ip, err
}

// Poll sleeps for the poll interval and polls the source once.
//
// If ctx is canceled before or during the sleep, Poll returns ctx.Err().
func (p *Poller) Poll(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	ip, err := p.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to poll source: %w", err)
	}
	return ip, nil
}

// Next sleeps for the poll interval and polls the source, repeating until the
// source reports an address different from current, which is then returned.
//
// A failed poll is returned immediately without further attempts.
// If ctx is canceled before or during a sleep, Next returns ctx.Err().
func (p *Poller) Next(ctx context.Context, current string) (string, error) {
	for {
		ip, err := p.Poll(ctx)
		if err != nil {
			return "", err
		}

		if ip != current {
			p.logger.Info("IP address changed", tslog.IP("old", current), tslog.IP("new", ip))
			return ip, nil
		}

		p.logger.Info("IP address unchanged, sleeping", tslog.IP("ip", ip), slog.Duration("interval", p.interval))
	}
}
