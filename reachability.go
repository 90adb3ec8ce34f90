package pocket

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Reachability is an abstract connectivity signal injected into the engine
// and façade, decoupling the core from any platform connectivity API. The
// Changes channel delivers edge events; a true value means connectivity was
// regained and wakes the engine for an immediate drain.
type Reachability interface {
	// Reachable reports present reachability.
	Reachable() bool

	// Changes delivers reachability transitions. May drop intermediate
	// events; only the latest state matters.
	Changes() <-chan bool
}

// ManualReachability is a Reachability the application shell drives directly,
// e.g. from a platform connectivity callback. The zero value is unreachable;
// use NewManualReachability for an initial state.
type ManualReachability struct {
	mu        sync.RWMutex
	reachable bool
	ch        chan bool
}

// NewManualReachability creates a manually driven reachability source.
func NewManualReachability(reachable bool) *ManualReachability {
	return &ManualReachability{reachable: reachable, ch: make(chan bool, 1)}
}

func (m *ManualReachability) Reachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

func (m *ManualReachability) Changes() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ch == nil {
		m.ch = make(chan bool, 1)
	}
	return m.ch
}

// Set updates the reachability state. Transitions are published without
// blocking; a stale undelivered event is replaced by the newer one.
func (m *ManualReachability) Set(reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reachable == reachable {
		return
	}
	m.reachable = reachable

	if m.ch == nil {
		m.ch = make(chan bool, 1)
	}
	select {
	case m.ch <- reachable:
	default:
		// Replace the undelivered event with the latest state.
		select {
		case <-m.ch:
		default:
		}
		m.ch <- reachable
	}
}

// ProbeMonitor derives reachability by pinging the remote health endpoint.
// While the service is up it probes at a fixed interval; while down it backs
// off along a capped Fibonacci schedule so a dead link isn't hammered.
type ProbeMonitor struct {
	remote   RemoteClient
	interval time.Duration
	state    *ManualReachability

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewProbeMonitor creates a monitor probing via remote.Ping every interval.
func NewProbeMonitor(remote RemoteClient, interval time.Duration) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ProbeMonitor{
		remote:   remote,
		interval: interval,
		state:    NewManualReachability(false),
	}
}

func (p *ProbeMonitor) Reachable() bool      { return p.state.Reachable() }
func (p *ProbeMonitor) Changes() <-chan bool { return p.state.Changes() }

// ProbeNow performs one synchronous probe and records the result. Useful for
// short-lived hosts that cannot wait for the background loop's first pass.
func (p *ProbeMonitor) ProbeNow(ctx context.Context) bool {
	err := p.probe(ctx)
	p.state.Set(err == nil)
	return err == nil
}

// Start begins probing in the background. Calling Start twice is a no-op.
func (p *ProbeMonitor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop halts probing and waits for the probe loop to exit.
func (p *ProbeMonitor) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *ProbeMonitor) run(ctx context.Context) {
	defer close(p.done)

	for {
		if err := p.probe(ctx); err == nil {
			p.state.Set(true)
		} else {
			if ctx.Err() != nil {
				return
			}
			p.state.Set(false)
			// Re-probe on a backoff schedule until the service answers,
			// then fall back to the steady interval.
			if err := p.waitUntilReachable(ctx); err != nil {
				return
			}
			p.state.Set(true)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *ProbeMonitor) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.remote.Ping(probeCtx)
}

func (p *ProbeMonitor) waitUntilReachable(ctx context.Context) error {
	backoff := retry.WithCappedDuration(2*time.Minute, retry.NewFibonacci(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.probe(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
