package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/database64128/dyns-go/producer"
	"github.com/database64128/dyns-go/tslog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns a source that yields the given addresses in order,
// repeating the last one once exhausted.
func sequence(calls *int, ips ...string) producer.Source {
	return producer.SourceFunc(func(context.Context) (string, error) {
		i := min(*calls, len(ips)-1)
		*calls++
		return ips[i], nil
	})
}

func TestNextSkipsUnchanged(t *testing.T) {
	var calls int
	p := New(time.Millisecond, sequence(&calls, "192.0.2.1", "192.0.2.1", "192.0.2.2"), tslog.Discard())

	ip, err := p.Next(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.2", ip)
	assert.Equal(t, 3, calls)
}

func TestNextReturnsSourceError(t *testing.T) {
	errBoom := errors.New("boom")
	p := New(time.Millisecond, producer.SourceFunc(func(context.Context) (string, error) {
		return "", errBoom
	}), tslog.Discard())

	_, err := p.Next(context.Background(), "192.0.2.1")
	assert.ErrorIs(t, err, errBoom)
}

func TestNextCanceledDuringSleep(t *testing.T) {
	var calls int
	p := New(time.Hour, sequence(&calls, "192.0.2.9"), tslog.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Next(ctx, "192.0.2.1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, calls)
}

func TestNextCanceledBeforeSleep(t *testing.T) {
	var calls int
	p := New(time.Millisecond, sequence(&calls, "192.0.2.9"), tslog.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Next(ctx, "192.0.2.1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestOnPoll(t *testing.T) {
	var calls int
	p := New(time.Millisecond, sequence(&calls, "192.0.2.1", "192.0.2.2"), tslog.Discard())

	var seen []string
	p.OnPoll = func(ip string, err error) {
		assert.NoError(t, err)
		seen = append(seen, ip)
	}

	_, err := p.Next(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, seen)
}

func TestDefaultInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, New(0, nil, tslog.Discard()).Interval())
}

func TestPollReturnsUnchangedAddress(t *testing.T) {
	var calls int
	p := New(time.Millisecond, sequence(&calls, "192.0.2.1"), tslog.Discard())

	ip, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", ip)
	assert.Equal(t, 1, calls)
}
