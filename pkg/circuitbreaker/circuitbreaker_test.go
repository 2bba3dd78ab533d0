package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", cb.State())
}

func TestSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return boom })

	assert.Equal(t, "closed", cb.State())
}
