// Package service provides the dynamic DNS service implementation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/database64128/dyns-go/metrics"
	"github.com/database64128/dyns-go/producer/poller"
	"github.com/database64128/dyns-go/provider"
	"github.com/database64128/dyns-go/tslog"
)

// DefaultRetryInterval is the initial backoff between record update attempts.
const DefaultRetryInterval = time.Second

// Zone is a zone whose records are kept pointed at the public IP address.
type Zone struct {
	// Name identifies the zone in logs, errors and metrics.
	Name string

	// Keeper updates the zone's records.
	Keeper provider.RecordKeeper

	// Records is the list of records to update, in order.
	Records []RecordConfig
}

// UpdaterOptions are the optional settings of an [Updater].
type UpdaterOptions struct {
	// OnError is the record update failure policy.
	// If empty, [OnErrorAbort] is used.
	OnError OnErrorPolicy

	// Retries is the number of extra attempts made for each failed record update.
	Retries int

	// RetryInterval is the initial backoff between attempts.
	// If not positive, [DefaultRetryInterval] is used.
	RetryInterval time.Duration

	// Metrics, if not nil, receives IP change and record update observations.
	Metrics *metrics.Metrics
}

// updaterState represents the state of an updater.
type updaterState uint

const (
	updaterStateUpdating updaterState = iota
	updaterStateWaiting
)

// Updater keeps the configured records pointed at the public IP address.
type Updater struct {
	poller        *poller.Poller
	zones         []Zone
	policy        OnErrorPolicy
	retries       int
	retryInterval time.Duration
	metrics       *metrics.Metrics
	logger        *tslog.Logger

	state     updaterState
	currentIP string
	dirty     bool
}

// NewUpdater creates a new [Updater].
func NewUpdater(p *poller.Poller, zones []Zone, opts UpdaterOptions, logger *tslog.Logger) *Updater {
	if opts.OnError == "" {
		opts.OnError = OnErrorAbort
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	return &Updater{
		poller:        p,
		zones:         zones,
		policy:        opts.OnError,
		retries:       max(opts.Retries, 0),
		retryInterval: opts.RetryInterval,
		metrics:       opts.Metrics,
		logger:        logger,
	}
}

// CurrentIP returns the last observed public IP address.
// It must not be called while Run is running.
func (u *Updater) CurrentIP() string {
	return u.currentIP
}

// Run looks up the public IP address, points every record at it, and then
// repeats that whenever the address changes.
//
// It blocks until ctx is canceled, in which case it returns nil,
// or until a fatal error occurs, which is returned.
func (u *Updater) Run(ctx context.Context) error {
	ip, err := u.poller.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to get initial IP address: %w", err)
	}
	u.logger.Info("Got initial IP address", tslog.IP("ip", ip))
	u.currentIP = ip
	u.state = updaterStateUpdating

	for {
		switch u.state {
		case updaterStateUpdating:
			if err := u.updateAll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if u.policy == OnErrorAbort {
					return err
				}
				u.logger.Warn("Update pass incomplete, retrying after next poll", tslog.Err(err))
				u.dirty = true
			} else {
				u.dirty = false
				u.metrics.SetCurrentIP(u.currentIP)
			}
			u.state = updaterStateWaiting

		case updaterStateWaiting:
			ip, err := u.wait(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if ip != u.currentIP {
				u.metrics.ObserveIPChange()
				u.currentIP = ip
			}
			u.state = updaterStateUpdating

		default:
			panic("unreachable")
		}
	}
}

// wait returns the next address to update the records to.
// After a failed pass it polls once, otherwise it waits for the address to change.
func (u *Updater) wait(ctx context.Context) (string, error) {
	if !u.dirty {
		return u.poller.Next(ctx, u.currentIP)
	}

	ip, err := u.poller.Poll(ctx)
	if err != nil {
		return "", err
	}
	if ip != u.currentIP {
		u.logger.Info("IP address changed", tslog.IP("old", u.currentIP), tslog.IP("new", ip))
	}
	return ip, nil
}

// updateAll updates every record of every zone, in order.
//
// Under [OnErrorAbort], the first failure is returned immediately.
// Under [OnErrorContinue], the remaining records are still updated,
// and all failures are returned joined.
func (u *Updater) updateAll(ctx context.Context) error {
	var errs []error

	for _, zone := range u.zones {
		zoneLogger := u.logger.WithAttrs(tslog.Zone(zone.Name))

		for _, record := range zone.Records {
			if err := ctx.Err(); err != nil {
				return err
			}

			recordLogger := zoneLogger.WithAttrs(tslog.Record(record.Name))
			err := u.updateRecord(ctx, zone.Keeper, record, recordLogger)
			u.metrics.ObserveRecordUpdate(zone.Name, record.Name, err)
			if err != nil {
				recordLogger.Error("Failed to update record", tslog.Err(err))
				err = fmt.Errorf("failed to update record %q in zone %q: %w", record.Name, zone.Name, err)
				if u.policy == OnErrorAbort {
					return err
				}
				errs = append(errs, err)
				continue
			}

			recordLogger.Info("Updated record",
				tslog.IP("ip", u.currentIP),
				slog.Bool("proxy", record.Proxied),
			)
		}
	}

	return errors.Join(errs...)
}

// updateRecord points a record at the current address,
// retrying transient failures when retries are enabled.
func (u *Updater) updateRecord(ctx context.Context, keeper provider.RecordKeeper, record RecordConfig, logger *tslog.Logger) error {
	if u.retries == 0 {
		return keeper.SyncRecord(ctx, record.Name, record.Proxied, u.currentIP)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := keeper.SyncRecord(ctx, record.Name, record.Proxied, u.currentIP)
		if provider.IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(u.retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Retrying record update",
				slog.Duration("backoff", next),
				tslog.Err(err),
			)
		}),
	)
	return err
}
