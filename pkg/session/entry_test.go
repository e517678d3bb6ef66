package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

func TestEntry_Freshness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEntry(clock, 5*time.Second)

	assert.True(t, e.IsStale(), "empty entry is stale")

	s := &auth.Session{UserID: "u1"}
	e.Set(s)

	clock.Advance(4999 * time.Millisecond)
	got, fresh := e.Get()
	assert.True(t, fresh)
	assert.Same(t, s, got)

	clock.Advance(2 * time.Millisecond)
	got, fresh = e.Get()
	assert.False(t, fresh)
	assert.Same(t, s, got, "stale entry still returns its value")
}

func TestEntry_NilIsCacheable(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEntry(clock, time.Second)

	e.Set(nil)
	got, fresh := e.Get()
	assert.Nil(t, got)
	assert.True(t, fresh)
}

func TestEntry_Clear(t *testing.T) {
	e := NewEntry(clockwork.NewFakeClock(), time.Second)
	e.Set(&auth.Session{UserID: "u1"})

	e.Clear()

	got, fresh := e.Get()
	assert.Nil(t, got)
	assert.False(t, fresh)
	assert.True(t, e.IsStale())
}

func TestLastGood(t *testing.T) {
	var l LastGood
	assert.Nil(t, l.Get())

	s := &auth.Session{UserID: "u1"}
	l.Set(s)
	assert.Same(t, s, l.Get())

	l.Clear()
	assert.Nil(t, l.Get())
}
