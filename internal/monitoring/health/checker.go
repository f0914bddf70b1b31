package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/theblitlabs/cook-staking/pkg/logger"
)

type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	LastChecked time.Time `json:"last_checked"`
}

// CheckFunc probes one component. A nil error with a message is healthy; an
// error marks the component as failing unless it is wrapped in Warning.
type CheckFunc func(ctx context.Context) (string, error)

type warning struct{ err error }

func (w warning) Error() string { return w.err.Error() }
func (w warning) Unwrap() error { return w.err }

// Warning marks err as degraded rather than failing
func Warning(err error) error {
	if err == nil {
		return nil
	}
	return warning{err}
}

// Checker runs registered checks periodically and keeps the latest results
type Checker struct {
	mu         sync.RWMutex
	checks     map[string]CheckFunc
	components map[string]*ComponentHealth
	checkFreq  time.Duration
	timeout    time.Duration
	log        zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewChecker(checkFreq time.Duration) *Checker {
	if checkFreq == 0 {
		checkFreq = 30 * time.Second
	}
	return &Checker{
		checks:     make(map[string]CheckFunc),
		components: make(map[string]*ComponentHealth),
		checkFreq:  checkFreq,
		timeout:    5 * time.Second,
		log:        logger.WithComponent("health_checker"),
	}
}

func (hc *Checker) Register(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Start runs all checks now and then every checkFreq until Stop
func (hc *Checker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	hc.cancel = cancel
	hc.done = make(chan struct{})

	hc.log.Info().Dur("frequency", hc.checkFreq).Msg("Starting health checker")

	go func() {
		defer close(hc.done)
		ticker := time.NewTicker(hc.checkFreq)
		defer ticker.Stop()

		hc.CheckAll(ctx)
		for {
			select {
			case <-ticker.C:
				hc.CheckAll(ctx)
			case <-ctx.Done():
				hc.log.Info().Msg("Health checker stopped")
				return
			}
		}
	}()
}

func (hc *Checker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
		<-hc.done
	}
}

func (hc *Checker) CheckAll(ctx context.Context) {
	hc.mu.RLock()
	checks := make(map[string]CheckFunc, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	for name, check := range checks {
		hc.run(ctx, name, check)
	}
}

func (hc *Checker) run(ctx context.Context, name string, check CheckFunc) {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	result := &ComponentHealth{Name: name, LastChecked: time.Now()}
	msg, err := check(ctx)
	switch {
	case err == nil:
		result.Status = StatusOK
		result.Message = msg
	default:
		result.Status = StatusError
		if _, ok := err.(warning); ok {
			result.Status = StatusWarning
		}
		result.Message = err.Error()
		hc.log.Warn().Err(err).Str("component", name).Str("status", string(result.Status)).Msg("Health check failed")
	}

	hc.mu.Lock()
	hc.components[name] = result
	hc.mu.Unlock()
}

// GetAllHealth returns copies of the latest results ordered by name
func (hc *Checker) GetAllHealth() []ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := make([]ComponentHealth, 0, len(hc.components))
	for _, c := range hc.components {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (hc *Checker) GetComponentHealth(name string) *ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if c, ok := hc.components[name]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Overall is the worst status across components
func (hc *Checker) Overall() Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := StatusOK
	for _, c := range hc.components {
		switch c.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			status = StatusWarning
		}
	}
	return status
}
