package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-session/internal/domain"
)

func TestDispatcherScopesByDomain(t *testing.T) {
	d := NewInMemoryDispatcher()
	ctx := context.Background()

	var staff, customer int
	d.Subscribe(SessionChanged(domain.DomainStaff), func(context.Context, Event) error {
		staff++
		return nil
	})
	d.Subscribe(SessionChanged(domain.DomainCustomer), func(context.Context, Event) error {
		customer++
		return nil
	})

	require.NoError(t, d.Publish(ctx, NewSessionChanged(domain.DomainStaff, ReasonLogin, "s-1")))

	assert.Equal(t, 1, staff, "delivered before Publish returns")
	assert.Equal(t, 0, customer)
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	topic := SessionChanged(domain.DomainAdmin)

	var calls int
	d.Subscribe(topic, func(context.Context, Event) error { return errors.New("render failed") })
	d.Subscribe(topic, func(context.Context, Event) error { calls++; return nil })

	err := d.Publish(context.Background(), NewSessionChanged(domain.DomainAdmin, ReasonLogout, ""))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewInMemoryDispatcher()
	topic := SessionChanged(domain.DomainCustomer)

	var calls int
	unsubscribe := d.Subscribe(topic, func(context.Context, Event) error { calls++; return nil })
	unsubscribe()

	require.NoError(t, d.Publish(context.Background(), NewSessionChanged(domain.DomainCustomer, ReasonLogin, "")))
	assert.Zero(t, calls)
}

func TestRedisRelayDeliversAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	ctx := context.Background()

	first := NewRedisRelay(newClient(), "sessions", nil, nil)
	second := NewRedisRelay(newClient(), "sessions", nil, nil)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	var local, remote atomic.Int32
	first.Subscribe(SessionChanged(domain.DomainStaff), func(context.Context, Event) error {
		local.Add(1)
		return nil
	})
	received := make(chan Event, 1)
	second.Subscribe(SessionChanged(domain.DomainStaff), func(_ context.Context, e Event) error {
		remote.Add(1)
		received <- e
		return nil
	})

	require.NoError(t, first.Publish(ctx, NewSessionChanged(domain.DomainStaff, ReasonLogout, "s-9")))

	select {
	case e := <-received:
		assert.Equal(t, domain.DomainStaff, e.Domain)
		assert.Equal(t, ReasonLogout, e.Reason)
		assert.Equal(t, "s-9", e.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("remote relay did not receive event")
	}

	// The publisher must not receive its own event a second time.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), local.Load())
	assert.Equal(t, int32(1), remote.Load())
}
