package orchestrator

import (
	"sync"
	"time"
)

// ProgressConfig controls the simulated progress indicator.
type ProgressConfig struct {
	Step       int
	Interval   time.Duration
	Ceiling    int
	ResetDelay time.Duration
}

// DefaultProgressConfig advances 10 points every 500ms up to 90 and clears
// the display one second after resolution.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Step:       10,
		Interval:   500 * time.Millisecond,
		Ceiling:    90,
		ResetDelay: time.Second,
	}
}

func (c ProgressConfig) withDefaults() ProgressConfig {
	d := DefaultProgressConfig()
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Ceiling <= 0 || c.Ceiling > 100 {
		c.Ceiling = d.Ceiling
	}
	if c.ResetDelay < 0 {
		c.ResetDelay = d.ResetDelay
	}
	return c
}

// SimulatedProgress is a liveness indicator for a submission in flight. It is
// driven purely by a timer and says nothing about how far the service
// actually got.
type SimulatedProgress struct {
	cfg ProgressConfig

	mu      sync.Mutex
	value   int
	running bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSimulatedProgress returns an indicator at 0. It does not tick until
// Start is called.
func NewSimulatedProgress(cfg ProgressConfig) *SimulatedProgress {
	return &SimulatedProgress{
		cfg:  cfg.withDefaults(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the ticker. onTick, if set, receives each new value. Start
// must be called at most once.
func (p *SimulatedProgress) Start(onTick func(int)) {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
			}

			p.mu.Lock()
			if p.value >= p.cfg.Ceiling {
				p.mu.Unlock()
				continue
			}
			p.value += p.cfg.Step
			if p.value > p.cfg.Ceiling {
				p.value = p.cfg.Ceiling
			}
			v := p.value
			p.mu.Unlock()

			if onTick != nil {
				onTick(v)
			}
		}
	}()
}

// Stop halts the ticker and waits for its goroutine to exit. Once Stop
// returns no further tick can change the value. Safe to call repeatedly and
// on an indicator that was never started.
func (p *SimulatedProgress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		<-p.done
	}
}

// Value returns the current simulated percentage.
func (p *SimulatedProgress) Value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set overrides the value, used for the terminal 100 and the reset to 0.
func (p *SimulatedProgress) Set(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}
