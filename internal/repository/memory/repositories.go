package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
)

type accountRepository struct{ s *Store }

func (r *accountRepository) Create(_ context.Context, account *model.Account) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.accounts {
		if existing.Email == account.Email && existing.Role == account.Role {
			return apperrors.Conflict("account already exists")
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	r.s.st.accounts[account.ID] = *account
	r.s.st.accountOrder = append(r.s.st.accountOrder, account.ID)
	return nil
}

func (r *accountRepository) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	defer r.s.lock()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	return &a, nil
}

func (r *accountRepository) GetByEmailAndRole(_ context.Context, email string, role model.Role) (*model.Account, error) {
	defer r.s.lock()()
	for _, a := range r.s.st.accounts {
		if a.Email == email && a.Role == role {
			return &a, nil
		}
	}
	return nil, apperrors.NotFound("account", nil)
}

func (r *accountRepository) Update(_ context.Context, account *model.Account) error {
	defer r.s.lock()()
	stored, ok := r.s.st.accounts[account.ID]
	if !ok {
		return apperrors.NotFound("account", nil)
	}
	account.UpdatedAt = time.Now().UTC()
	// identity fields are immutable
	account.Role = stored.Role
	account.Email = stored.Email
	account.PasswordHash = stored.PasswordHash
	account.External = stored.External
	account.CreatedAt = stored.CreatedAt
	r.s.st.accounts[account.ID] = *account
	return nil
}

func (r *accountRepository) ListByRole(_ context.Context, role model.Role) ([]*model.Account, error) {
	defer r.s.lock()()
	var out []*model.Account
	for _, id := range r.s.st.accountOrder {
		a := r.s.st.accounts[id]
		if a.Role == role {
			out = append(out, &a)
		}
	}
	return out, nil
}

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	defer r.s.lock()()
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	r.s.st.appointments[appointment.ID] = *appointment
	r.s.st.appointmentOrder = append(r.s.st.appointmentOrder, appointment.ID)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	defer r.s.lock()()
	a, ok := r.s.st.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &a, nil
}

// GetForUpdate needs no row lock; a transaction already holds the store.
func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *appointmentRepository) Transition(_ context.Context, appointment *model.Appointment, from model.AppointmentStatus) error {
	defer r.s.lock()()
	stored, ok := r.s.st.appointments[appointment.ID]
	if !ok || stored.Status != from {
		return apperrors.InvalidState(fmt.Sprintf("appointment is no longer %s", from))
	}
	stored.Status = appointment.Status
	stored.BloodType = appointment.BloodType
	stored.UnitsCollected = appointment.UnitsCollected
	stored.DonationDate = appointment.DonationDate
	stored.UpdatedAt = time.Now().UTC()
	appointment.UpdatedAt = stored.UpdatedAt
	r.s.st.appointments[appointment.ID] = stored
	return nil
}

func (r *appointmentRepository) SetReceiptURL(_ context.Context, id uuid.UUID, url string) error {
	defer r.s.lock()()
	stored, ok := r.s.st.appointments[id]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	stored.ReceiptURL = url
	stored.UpdatedAt = time.Now().UTC()
	r.s.st.appointments[id] = stored
	return nil
}

func (r *appointmentRepository) ListByBloodBank(_ context.Context, bloodBankID uuid.UUID) ([]*model.AppointmentView, error) {
	defer r.s.lock()()
	var out []*model.AppointmentView
	for _, id := range r.s.st.appointmentOrder {
		a := r.s.st.appointments[id]
		if a.BloodBankID != bloodBankID {
			continue
		}
		donor := r.s.st.accounts[a.DonorID]
		out = append(out, &model.AppointmentView{Appointment: a, Donor: donor.Contact()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *appointmentRepository) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*model.Appointment, error) {
	defer r.s.lock()()
	var out []*model.Appointment
	for _, id := range r.s.st.appointmentOrder {
		a := r.s.st.appointments[id]
		if a.DonorID == donorID {
			out = append(out, &a)
		}
	}
	return out, nil
}

type stockRepository struct{ s *Store }

func (r *stockRepository) Get(_ context.Context, bloodBankID uuid.UUID) (model.BloodStock, error) {
	defer r.s.lock()()
	out := make(model.BloodStock)
	for g, u := range r.s.st.stock[bloodBankID] {
		out[g] = u
	}
	return out, nil
}

func (r *stockRepository) entry(bloodBankID uuid.UUID) model.BloodStock {
	bs, ok := r.s.st.stock[bloodBankID]
	if !ok {
		bs = make(model.BloodStock)
		r.s.st.stock[bloodBankID] = bs
	}
	return bs
}

func (r *stockRepository) Increment(_ context.Context, bloodBankID uuid.UUID, group string, delta, capacity int) (int, error) {
	defer r.s.lock()()
	bs := r.entry(bloodBankID)
	units := model.AddUnits(bs[group], delta, capacity)
	bs[group] = units
	return units, nil
}

func (r *stockRepository) Decrement(_ context.Context, bloodBankID uuid.UUID, group string, delta int) (int, error) {
	defer r.s.lock()()
	bs := r.entry(bloodBankID)
	units := 0
	if delta < bs[group] {
		units = bs[group] - delta
	}
	bs[group] = units
	return units, nil
}

func (r *stockRepository) Reserve(_ context.Context, group string, quantity int) (uuid.UUID, int, bool, error) {
	defer r.s.lock()()
	for _, id := range r.s.st.accountOrder {
		if r.s.st.accounts[id].Role != model.RoleBloodBank {
			continue
		}
		bs, ok := r.s.st.stock[id]
		if !ok || bs[group] < quantity {
			continue
		}
		bs[group] -= quantity
		return id, bs[group], true, nil
	}
	return uuid.Nil, 0, false, nil
}

func (r *stockRepository) Replace(_ context.Context, bloodBankID uuid.UUID, stock model.BloodStock) error {
	defer r.s.lock()()
	bs := make(model.BloodStock, len(stock))
	for g, u := range stock {
		bs[g] = model.ClampUnits(u)
	}
	r.s.st.stock[bloodBankID] = bs
	return nil
}

type requestRepository struct{ s *Store }

func (r *requestRepository) Create(_ context.Context, request *model.Request) error {
	defer r.s.lock()()
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	r.s.st.requests[request.ID] = *request
	r.s.st.requestOrder = append(r.s.st.requestOrder, request.ID)
	return nil
}

func (r *requestRepository) Get(_ context.Context, id uuid.UUID) (*model.Request, error) {
	defer r.s.lock()()
	req, ok := r.s.st.requests[id]
	if !ok {
		return nil, apperrors.NotFound("request", nil)
	}
	return &req, nil
}

func (r *requestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return r.Get(ctx, id)
}

func (r *requestRepository) ListByHospital(_ context.Context, hospitalID uuid.UUID) ([]*model.Request, error) {
	defer r.s.lock()()
	var out []*model.Request
	for _, id := range r.s.st.requestOrder {
		req := r.s.st.requests[id]
		if req.HospitalID == hospitalID {
			out = append(out, &req)
		}
	}
	return out, nil
}

func (r *requestRepository) ListByKind(_ context.Context, kind model.RequestKind) ([]*model.RequestView, error) {
	defer r.s.lock()()
	var out []*model.RequestView
	for _, id := range r.s.st.requestOrder {
		req := r.s.st.requests[id]
		if req.Kind != kind {
			continue
		}
		hospital := r.s.st.accounts[req.HospitalID]
		out = append(out, &model.RequestView{Request: req, Hospital: hospital.Contact()})
	}
	return out, nil
}

func (r *requestRepository) MarkReserved(_ context.Context, id, bloodBankID uuid.UUID) error {
	defer r.s.lock()()
	stored, ok := r.s.st.requests[id]
	if !ok {
		return apperrors.NotFound("request", nil)
	}
	stored.ReservedBy = &bloodBankID
	stored.UpdatedAt = time.Now().UTC()
	r.s.st.requests[id] = stored
	return nil
}

func (r *requestRepository) Resolve(_ context.Context, request *model.Request) error {
	defer r.s.lock()()
	stored, ok := r.s.st.requests[request.ID]
	if !ok || stored.Status != model.RequestStatusPending {
		return apperrors.InvalidState("request is no longer pending")
	}
	stored.Status = request.Status
	stored.FulfilledBy = request.FulfilledBy
	stored.FulfilledDate = request.FulfilledDate
	stored.FulfilledBloodType = request.FulfilledBloodType
	stored.FulfilledQuantity = request.FulfilledQuantity
	stored.RejectedBy = request.RejectedBy
	stored.UpdatedAt = time.Now().UTC()
	request.UpdatedAt = stored.UpdatedAt
	r.s.st.requests[request.ID] = stored
	return nil
}

type alertRepository struct{ s *Store }

func (r *alertRepository) Create(_ context.Context, alert *model.SOSAlert) error {
	defer r.s.lock()()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	now := time.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	r.s.st.alerts[alert.ID] = *alert
	r.s.st.alertOrder = append(r.s.st.alertOrder, alert.ID)
	return nil
}

func (r *alertRepository) Get(_ context.Context, hospitalID, alertID uuid.UUID) (*model.SOSAlert, error) {
	defer r.s.lock()()
	a, ok := r.s.st.alerts[alertID]
	if !ok || a.HospitalID != hospitalID {
		return nil, apperrors.NotFound("sos alert", nil)
	}
	return &a, nil
}

func (r *alertRepository) Update(_ context.Context, alert *model.SOSAlert) error {
	defer r.s.lock()()
	stored, ok := r.s.st.alerts[alert.ID]
	if !ok || stored.HospitalID != alert.HospitalID {
		return apperrors.NotFound("sos alert", nil)
	}
	stored.Status = alert.Status
	stored.AmbulanceDispatched = alert.AmbulanceDispatched
	stored.UpdatedAt = time.Now().UTC()
	alert.UpdatedAt = stored.UpdatedAt
	r.s.st.alerts[alert.ID] = stored
	return nil
}

func (r *alertRepository) ListByHospital(_ context.Context, hospitalID uuid.UUID) ([]*model.SOSAlert, error) {
	defer r.s.lock()()
	var out []*model.SOSAlert
	for _, id := range r.s.st.alertOrder {
		a := r.s.st.alerts[id]
		if a.HospitalID == hospitalID {
			out = append(out, &a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
