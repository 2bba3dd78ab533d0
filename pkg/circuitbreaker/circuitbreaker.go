package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned without calling fn while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// HalfOpenRequests may pass while probing a half-open breaker.
	HalfOpenRequests int
	Interval         time.Duration
	Timeout          time.Duration
	OnStateChange    func(name, from, to string)
}

type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	halfOpen := settings.HalfOpenRequests
	if halfOpen <= 0 {
		halfOpen = 1
	}

	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: uint32(halfOpen),
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	}
	if settings.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			settings.OnStateChange(name, from.String(), to.String())
		}
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(st)}
}

func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
