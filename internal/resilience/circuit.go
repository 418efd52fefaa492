package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// BreakerState is the admission state of one region's breaker.
type BreakerState int

const (
	// BreakerClosed admits every query.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects queries until the cooldown elapses. The
	// aggregate fan-out treats a rejection like an empty region, so an
	// outage in one country costs one cheap error instead of a retry
	// loop per aggregation.
	BreakerOpen
	// BreakerHalfOpen admits probe queries to test whether the regional
	// database is reachable again.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned in place of a query result while a region
// is in cooldown.
var ErrBreakerOpen = eris.New("resilience: region breaker is open")

// BreakerConfig tunes a region breaker. The zero value gets defaults
// from NewBreaker.
type BreakerConfig struct {
	// FailureThreshold is the connectivity-failure streak that opens
	// the breaker. Default 5.
	FailureThreshold int

	// Cooldown is how long an open breaker rejects queries before
	// admitting probes. Default 30s.
	Cooldown time.Duration

	// ProbeQuota is how many probe queries must succeed in half-open
	// before the region is trusted again. Default 1.
	ProbeQuota int

	// Trips classifies which errors count toward the failure streak.
	// Nil means IsTransient: an unreachable or overloaded database
	// trips the breaker, a malformed query does not — the database
	// answered, it just said no.
	Trips func(err error) bool

	// OnStateChange observes transitions, for logging.
	OnStateChange func(from, to BreakerState)
}

// Breaker guards one region's database. Opening it is a statement about
// the region's reachability, not about any particular query.
type Breaker struct {
	cfg BreakerConfig

	mu         sync.Mutex
	state      BreakerState
	failStreak int
	openedAt   time.Time
	probesOK   int

	now func() time.Time
}

// NewBreaker builds a breaker, filling config defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 1
	}
	if cfg.Trips == nil {
		cfg.Trips = IsTransient
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Guard runs fn under b. While the breaker is open it returns
// ErrBreakerOpen without invoking fn; otherwise fn's outcome feeds the
// failure streak.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	b.observe(err)
	return val, err
}

// State reports the breaker's current state. An open breaker whose
// cooldown has elapsed reports half-open, matching what the next Guard
// call will do.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooldownOver() {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if !b.cooldownOver() {
			return ErrBreakerOpen
		}
		b.shift(BreakerHalfOpen)
	}
	return nil
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.cfg.Trips(err) {
		b.failStreak++
		b.openedAt = b.now()
		switch b.state {
		case BreakerClosed:
			if b.failStreak >= b.cfg.FailureThreshold {
				b.shift(BreakerOpen)
			}
		case BreakerHalfOpen:
			// The probe failed; back to cooldown.
			b.probesOK = 0
			b.shift(BreakerOpen)
		}
		return
	}

	// Success, or an error the database itself produced. Either way the
	// region answered, which is what the breaker measures.
	switch b.state {
	case BreakerClosed:
		b.failStreak = 0
	case BreakerHalfOpen:
		b.probesOK++
		if b.probesOK >= b.cfg.ProbeQuota {
			b.failStreak = 0
			b.probesOK = 0
			b.shift(BreakerClosed)
		}
	}
}

func (b *Breaker) cooldownOver() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

// shift requires b.mu held.
func (b *Breaker) shift(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// RegionBreakers holds one breaker per region so each country's outage
// is isolated from the others.
type RegionBreakers struct {
	cfg BreakerConfig

	mu       sync.Mutex
	byRegion map[model.Region]*Breaker
}

// NewRegionBreakers builds an empty registry; breakers are created on
// first use with the given config.
func NewRegionBreakers(cfg BreakerConfig) *RegionBreakers {
	return &RegionBreakers{
		cfg:      cfg,
		byRegion: make(map[model.Region]*Breaker, len(model.AllRegions)),
	}
}

// For returns the breaker for a region, creating it if needed.
func (rb *RegionBreakers) For(r model.Region) *Breaker {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	b, ok := rb.byRegion[r]
	if !ok {
		b = NewBreaker(rb.cfg)
		rb.byRegion[r] = b
	}
	return b
}

// Snapshot reports the state of every breaker created so far.
func (rb *RegionBreakers) Snapshot() map[model.Region]BreakerState {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make(map[model.Region]BreakerState, len(rb.byRegion))
	for r, b := range rb.byRegion {
		out[r] = b.State()
	}
	return out
}
