package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
)

// All repository interfaces in one file
type (
	// Store groups the repositories and opens transactions spanning them.
	Store interface {
		Accounts() AccountRepository
		Appointments() AppointmentRepository
		Stock() StockRepository
		Requests() RequestRepository
		Alerts() AlertRepository
		// WithTx runs fn against a Store bound to one transaction; fn's error rolls it back.
		WithTx(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
	}

	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Account, error)
		Update(ctx context.Context, account *model.Account) error
		// ListByRole returns accounts in registration order.
		ListByRole(ctx context.Context, role model.Role) ([]*model.Account, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// GetForUpdate locks the row until the surrounding transaction ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Transition persists status and completion fields only if the stored
		// status still equals from; otherwise it returns an InvalidState error.
		Transition(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error
		SetReceiptURL(ctx context.Context, id uuid.UUID, url string) error
		ListByBloodBank(ctx context.Context, bloodBankID uuid.UUID) ([]*model.AppointmentView, error)
		ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Appointment, error)
	}

	StockRepository interface {
		Get(ctx context.Context, bloodBankID uuid.UUID) (model.BloodStock, error)
		// Increment stores min(max(current+delta, 0), capacity) and returns it.
		Increment(ctx context.Context, bloodBankID uuid.UUID, group string, delta, capacity int) (int, error)
		// Decrement stores max(current-delta, 0) and returns it.
		Decrement(ctx context.Context, bloodBankID uuid.UUID, group string, delta int) (int, error)
		// Reserve atomically takes quantity units of group from the first blood
		// bank, in registration order, holding at least that many. ok is false
		// when no bank qualifies; nothing is written in that case.
		Reserve(ctx context.Context, group string, quantity int) (bloodBankID uuid.UUID, remaining int, ok bool, err error)
		Replace(ctx context.Context, bloodBankID uuid.UUID, stock model.BloodStock) error
	}

	RequestRepository interface {
		Create(ctx context.Context, request *model.Request) error
		Get(ctx context.Context, id uuid.UUID) (*model.Request, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error)
		ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*model.Request, error)
		ListByKind(ctx context.Context, kind model.RequestKind) ([]*model.RequestView, error)
		// MarkReserved records the bank that already supplied a pending request.
		MarkReserved(ctx context.Context, id, bloodBankID uuid.UUID) error
		// Resolve persists the new status and resolution fields only if the
		// stored status is still pending.
		Resolve(ctx context.Context, request *model.Request) error
	}

	AlertRepository interface {
		Create(ctx context.Context, alert *model.SOSAlert) error
		Get(ctx context.Context, hospitalID, alertID uuid.UUID) (*model.SOSAlert, error)
		Update(ctx context.Context, alert *model.SOSAlert) error
		ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*model.SOSAlert, error)
	}
)
