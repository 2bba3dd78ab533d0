// Package memory is an in-process repository.Store used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
)

type state struct {
	accounts     map[uuid.UUID]model.Account
	accountOrder []uuid.UUID

	appointments     map[uuid.UUID]model.Appointment
	appointmentOrder []uuid.UUID

	stock map[uuid.UUID]model.BloodStock

	requests     map[uuid.UUID]model.Request
	requestOrder []uuid.UUID

	alerts     map[uuid.UUID]model.SOSAlert
	alertOrder []uuid.UUID
}

func newState() *state {
	return &state{
		accounts:     make(map[uuid.UUID]model.Account),
		appointments: make(map[uuid.UUID]model.Appointment),
		stock:        make(map[uuid.UUID]model.BloodStock),
		requests:     make(map[uuid.UUID]model.Request),
		alerts:       make(map[uuid.UUID]model.SOSAlert),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:         make(map[uuid.UUID]model.Account, len(s.accounts)),
		accountOrder:     append([]uuid.UUID(nil), s.accountOrder...),
		appointments:     make(map[uuid.UUID]model.Appointment, len(s.appointments)),
		appointmentOrder: append([]uuid.UUID(nil), s.appointmentOrder...),
		stock:            make(map[uuid.UUID]model.BloodStock, len(s.stock)),
		requests:         make(map[uuid.UUID]model.Request, len(s.requests)),
		requestOrder:     append([]uuid.UUID(nil), s.requestOrder...),
		alerts:           make(map[uuid.UUID]model.SOSAlert, len(s.alerts)),
		alertOrder:       append([]uuid.UUID(nil), s.alertOrder...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.stock {
		bs := make(model.BloodStock, len(v))
		for g, u := range v {
			bs[g] = u
		}
		c.stock[k] = bs
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.alerts {
		c.alerts[k] = v
	}
	return c
}

// Store keeps everything behind one mutex. A transaction holds the mutex for
// its whole duration and restores a snapshot when fn fails.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Accounts() repository.AccountRepository         { return &accountRepository{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepository{s} }
func (s *Store) Stock() repository.StockRepository               { return &stockRepository{s} }
func (s *Store) Requests() repository.RequestRepository          { return &requestRepository{s} }
func (s *Store) Alerts() repository.AlertRepository              { return &alertRepository{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			*s.st = *snapshot
			panic(p)
		}
		if err != nil {
			*s.st = *snapshot
		}
	}()

	return fn(&Store{mu: s.mu, st: s.st, inTx: true})
}
