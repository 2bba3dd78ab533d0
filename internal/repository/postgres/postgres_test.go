package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestStockIncrement_ReturnsClampedUnits(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`INSERT INTO blood_stock`).
		WithArgs(bankID, "A+", 5, model.StockCapacity, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(50))

	units, err := store.Stock().Increment(context.Background(), bankID, "A+", 5, model.StockCapacity)

	require.NoError(t, err)
	assert.Equal(t, 50, units)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockDecrement(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`GREATEST\(blood_stock.units - \$3::int, 0\)`).
		WithArgs(bankID, "O-", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(0))

	units, err := store.Stock().Decrement(context.Background(), bankID, "O-", 3)

	require.NoError(t, err)
	assert.Equal(t, 0, units)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockReserve_Success(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`WITH candidate AS`).
		WithArgs("B+", 4, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"blood_bank_id", "units"}).AddRow(bankID.String(), 6))

	got, remaining, ok, err := store.Stock().Reserve(context.Background(), "B+", 4)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bankID, got)
	assert.Equal(t, 6, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockReserve_NoBankQualifies(t *testing.T) {
	store, mock := setupMockStore(t)

	for i := 0; i < reserveAttempts; i++ {
		mock.ExpectQuery(`WITH candidate AS`).
			WithArgs("AB-", 10, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"blood_bank_id", "units"}))
	}

	_, _, ok, err := store.Stock().Reserve(context.Background(), "AB-", 10)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockReserve_RetriesWithLockAfterSkippedRows(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`FOR UPDATE OF s SKIP LOCKED`).
		WithArgs("O+", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"blood_bank_id", "units"}))
	mock.ExpectQuery(`FOR UPDATE OF s\s+\)`).
		WithArgs("O+", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"blood_bank_id", "units"}).AddRow(bankID.String(), 9))

	got, remaining, ok, err := store.Stock().Reserve(context.Background(), "O+", 3)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bankID, got)
	assert.Equal(t, 9, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockReserve_AboveCapacitySkipsQuery(t *testing.T) {
	store, mock := setupMockStore(t)

	_, _, ok, err := store.Stock().Reserve(context.Background(), "A+", math.MaxInt)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockIncrement_HugeDeltaIsBoundedBeforeBinding(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`INSERT INTO blood_stock`).
		WithArgs(bankID, "O+", model.StockCapacity, model.StockCapacity, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(50))

	units, err := store.Stock().Increment(context.Background(), bankID, "O+", math.MaxInt, model.StockCapacity)

	require.NoError(t, err)
	assert.Equal(t, 50, units)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockGet(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()

	mock.ExpectQuery(`SELECT blood_group, units FROM blood_stock`).
		WithArgs(bankID).
		WillReturnRows(sqlmock.NewRows([]string{"blood_group", "units"}).
			AddRow("A+", 12).
			AddRow("O-", 0))

	stock, err := store.Stock().Get(context.Background(), bankID)

	require.NoError(t, err)
	assert.Equal(t, model.BloodStock{"A+": 12, "O-": 0}, stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentTransition_StaleStatus(t *testing.T) {
	store, mock := setupMockStore(t)
	appt := &model.Appointment{Status: model.AppointmentStatusCompleted}
	appt.ID = uuid.New()

	mock.ExpectExec(`UPDATE appointments`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Appointments().Transition(context.Background(), appt, model.AppointmentStatusScheduled)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentListByBloodBank_AttachesDonor(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()
	donorID := uuid.New()
	apptID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "donor_id", "blood_bank_id", "type", "date", "status",
		"blood_type", "units_collected", "donation_date", "receipt_url",
		"created_at", "updated_at",
		"donor.id", "donor.name", "donor.phone", "donor.blood_group",
		"donor.location.latitude", "donor.location.longitude", "donor.location.city",
	}).AddRow(
		apptID.String(), donorID.String(), bankID.String(), "blood", now, "scheduled",
		nil, nil, nil, "",
		now, now,
		donorID.String(), "Asha", "9876543210", "O+",
		12.97, 77.59, "Bengaluru",
	)
	mock.ExpectQuery(`FROM appointments a\s+JOIN accounts d`).
		WithArgs(bankID).
		WillReturnRows(rows)

	views, err := store.Appointments().ListByBloodBank(context.Background(), bankID)

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, apptID, views[0].ID)
	assert.Equal(t, "Asha", views[0].Donor.Name)
	assert.Equal(t, "Bengaluru", views[0].Donor.Location.City)
	assert.Nil(t, views[0].UnitsCollected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreate_DuplicateEmailAndRole(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.Accounts().Create(context.Background(), &model.Account{
		Role:         model.RoleNormalUser,
		Name:         "Asha",
		Email:        "asha@example.com",
		PasswordHash: "hash",
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountGet_NotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Accounts().Get(context.Background(), id)

	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestResolve_AlreadyResolved(t *testing.T) {
	store, mock := setupMockStore(t)
	req := &model.Request{Status: model.RequestStatusRejected}
	req.ID = uuid.New()

	mock.ExpectExec(`UPDATE requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Requests().Resolve(context.Background(), req)

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertGet_ScopedToHospital(t *testing.T) {
	store, mock := setupMockStore(t)
	hospitalID := uuid.New()
	alertID := uuid.New()

	mock.ExpectQuery(`FROM sos_alerts WHERE id = \$1 AND hospital_id = \$2`).
		WithArgs(alertID, hospitalID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Alerts().Get(context.Background(), hospitalID, alertID)

	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := setupMockStore(t)
	bankID := uuid.New()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO blood_stock`).
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(7))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx repository.Store) error {
		if _, err := tx.Stock().Increment(context.Background(), bankID, "A+", 7, model.StockCapacity); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Commits(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments SET receipt_url`).
		WithArgs("/receipts/x", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx repository.Store) error {
		return tx.Appointments().SetReceiptURL(context.Background(), id, "/receipts/x")
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
