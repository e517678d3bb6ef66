package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
	"github.com/gemeos/tenant-auth/pkg/observability"
)

// DefaultTTL is how long a fetched session is served without refetching
const DefaultTTL = 5 * time.Second

// DefaultPlatformAdminRoles are the role names that grant platform admin
var DefaultPlatformAdminRoles = []string{auth.RolePlatformAdmin, auth.RoleSuperAdmin}

// DefaultSeedAdminEmail is the seed account always treated as platform admin
const DefaultSeedAdminEmail = "admin@gemeos.ai"

const flightKey = "session"

// Cache serves the current Session with a short TTL, sharing one in-flight
// fetch among concurrent callers. Fetch failures never surface to callers:
// they degrade to the last successfully built session, which may be nil.
//
// Returned sessions are shared between callers and must be treated as read-only.
type Cache struct {
	authClient gateway.AuthClient
	resolver   *Resolver

	entry    *Entry
	lastGood *LastGood
	flight   singleflight.Group

	// epoch is bumped by Clear so that a fetch started before a logout
	// cannot repopulate the cache after it.
	mu    sync.Mutex
	epoch uint64

	clock   clockwork.Clock
	logger  *observability.Logger
	metrics *observability.Metrics
}

type options struct {
	clock          clockwork.Clock
	ttl            time.Duration
	adminRoles     []string
	seedAdminEmail string
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// Option configures a Cache
type Option func(*options)

// WithClock overrides the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPlatformAdminRoles overrides DefaultPlatformAdminRoles
func WithPlatformAdminRoles(roles []string) Option {
	return func(o *options) { o.adminRoles = roles }
}

// WithSeedAdminEmail overrides DefaultSeedAdminEmail; empty disables it
func WithSeedAdminEmail(email string) Option {
	return func(o *options) { o.seedAdminEmail = email }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewCache creates a session cache over the given gateway
func NewCache(gw gateway.Gateway, opts ...Option) *Cache {
	o := options{
		clock:          clockwork.NewRealClock(),
		ttl:            DefaultTTL,
		adminRoles:     DefaultPlatformAdminRoles,
		seedAdminEmail: DefaultSeedAdminEmail,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observability.NewNopLogger()
	}

	return &Cache{
		authClient: gw,
		resolver:   NewResolver(gw, o.adminRoles, o.seedAdminEmail),
		entry:      NewEntry(o.clock, o.ttl),
		lastGood:   &LastGood{},
		clock:      o.clock,
		logger:     o.logger.WithField("component", "session_cache"),
		metrics:    o.metrics,
	}
}

// Entry exposes the TTL entry
func (c *Cache) Entry() *Entry {
	return c.entry
}

// LastGood exposes the last-good fallback holder
func (c *Cache) LastGood() *LastGood {
	return c.lastGood
}

// Current returns the current session, or nil when nobody is logged in.
// It never returns an error. If ctx ends while waiting on a fetch, the
// last-good session is returned and the fetch continues for other callers.
func (c *Cache) Current(ctx context.Context) *auth.Session {
	if s, fresh := c.entry.Get(); fresh {
		c.metrics.IncSessionCache("hit")
		return s
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	// The shared fetch must not be cancelled by whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (interface{}, error) {
		// A flight that finished between our check and DoChan already stamped the entry.
		if s, fresh := c.entry.Get(); fresh {
			return s, nil
		}
		return c.fetch(fetchCtx, epoch), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.IncSessionCache("shared")
		} else {
			c.metrics.IncSessionCache("miss")
		}
		s, _ := res.Val.(*auth.Session)
		return s
	case <-ctx.Done():
		s, _ := auth.Fallback[*auth.Session](auth.OpSessionFetch, c.lastGood.Get(), nil)
		return s
	}
}

// fetch loads and resolves the session, then stamps the entry
func (c *Cache) fetch(ctx context.Context, epoch uint64) *auth.Session {
	s, ok := c.load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// Cleared while in flight; do not resurrect the identity.
		return nil
	}
	if ok {
		c.lastGood.Set(s)
	} else {
		s, _ = auth.Fallback[*auth.Session](auth.OpSessionFetch, c.lastGood.Get(), nil)
	}
	c.entry.Set(s)
	return s
}

// load returns a freshly built session and true, or false on any failure or
// absence of a logged-in user
func (c *Cache) load(ctx context.Context) (*auth.Session, bool) {
	authSession, err := c.authClient.GetSession(ctx)
	if err != nil {
		c.metrics.IncSessionFetch("error")
		c.logger.WithError(err).Warn("Session fetch failed, serving last good session")
		return nil, false
	}
	if authSession == nil || authSession.User.ID == "" {
		c.metrics.IncSessionFetch("none")
		c.logger.Debug("No active session")
		return nil, false
	}

	s, err := c.resolver.Resolve(ctx, authSession.User)
	if err != nil {
		c.metrics.IncSessionFetch("error")
		c.logger.WithError(err).WithField("user_id", authSession.User.ID).Warn("Session resolution failed, serving last good session")
		return nil, false
	}

	c.metrics.IncSessionFetch("ok")
	return s, true
}

// Clear drops the cached session, any in-flight fetch, and the last-good
// session. Only logout and test resets call it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.flight.Forget(flightKey)
	c.entry.Clear()
	c.lastGood.Clear()
}
