package projector

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/models"
)

// DefaultInterval is how often the projector reads the live record.
const DefaultInterval = time.Second

// StateReader is what the projector needs from the live tables.
type StateReader interface {
	GetState(ctx context.Context) (models.LiveAuctionState, error)
}

// Status describes the recent health of the poll loop.
type Status struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastRender          time.Time `json:"last_render"`
	Renders             int       `json:"renders"`
}

// IsReady reports whether the poller has read the record recently and is
// not failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// Poller reads the live record on an interval and replaces its cached view
// only when the refresh token differs from the cached one.
type Poller struct {
	reader   StateReader
	clock    clockwork.Clock
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	// pollMu serializes read, render and broadcast so an older read can
	// never replace a newer view.
	pollMu sync.Mutex

	mu      sync.RWMutex
	current *View
	status  Status

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan View
}

type Option func(*Poller)

func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func NewPoller(reader StateReader, opts ...Option) *Poller {
	p := &Poller{
		reader:   reader,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		done:     make(chan struct{}),
		subs:     make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start begins polling until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	p.startMu.Unlock()

	ticker := p.clock.NewTicker(p.interval)

	go func() {
		defer ticker.Stop()
		log.Info().Dur("interval", p.interval).Msg("projector poller started")
		p.Poll(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("projector poller stopped")
				return
			case <-p.done:
				log.Info().Msg("projector poller stopped")
				return
			case <-ticker.Chan():
				p.Poll(ctx)
			}
		}
	}()
}

// Stop halts the polling loop.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

// Poll reads the record once. It reports whether the view was re-rendered,
// which happens when nothing is cached yet or the token changed. A read
// failure keeps the previous view.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	return p.poll(ctx, false)
}

// Refresh reads the record and replaces the cached view regardless of the
// token.
func (p *Poller) Refresh(ctx context.Context) (View, error) {
	if _, err := p.poll(ctx, true); err != nil {
		return View{}, err
	}
	v, _ := p.Current()
	return v, nil
}

func (p *Poller) poll(ctx context.Context, force bool) (bool, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	start := p.clock.Now()
	p.recordAttempt(start)

	state, err := p.reader.GetState(ctx)
	if err != nil {
		p.recordFailure(err)
		log.Warn().
			Err(err).
			Dur("duration", p.clock.Since(start)).
			Msg("projector poll failed")
		return false, err
	}
	p.recordSuccess(start)

	p.mu.Lock()
	if !force && p.current != nil && p.current.RefreshToken == state.RefreshToken {
		p.mu.Unlock()
		return false, nil
	}
	prev := int64(-1)
	if p.current != nil {
		prev = p.current.RefreshToken
	}
	v := Render(state, p.clock.Now())
	p.current = &v
	p.status.LastRender = v.RenderedAt
	p.status.Renders++
	p.mu.Unlock()

	log.Debug().
		Int64("refresh_token", v.RefreshToken).
		Int64("previous_token", prev).
		Str("status", string(v.Status)).
		Bool("forced", force).
		Msg("projector view rendered")
	p.broadcast(v)
	return true, nil
}

// Current returns the cached view, if any poll has succeeded yet.
func (p *Poller) Current() (View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return View{}, false
	}
	return *p.current, true
}

// Snapshot returns the cached view with its countdown evaluated now.
func (p *Poller) Snapshot() (Snapshot, bool) {
	v, ok := p.Current()
	if !ok {
		return Snapshot{}, false
	}
	return v.At(p.clock.Now()), true
}

// Subscribe returns a channel that receives each re-rendered view. A slow
// subscriber only ever sees the latest view. Call cancel to unsubscribe.
func (p *Poller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (p *Poller) Subscribers() int {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	return len(p.subs)
}

func (p *Poller) broadcast(v View) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		// Drop the stale view so the send never blocks.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func (p *Poller) recordAttempt(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastAttempt = at
}

func (p *Poller) recordSuccess(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastSuccess = at
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ConsecutiveFailures++
	p.status.LastError = err.Error()
}

// Status returns a snapshot of the poller's recent health.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
