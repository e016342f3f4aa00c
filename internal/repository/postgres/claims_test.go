package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var claimedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testClaim() *domain.DeliveryClaim {
	return &domain.DeliveryClaim{
		ID: "claim-1", EventID: "E1", Type: domain.CelebrationBigSale, ChannelID: "C1",
		Status: domain.ClaimPending, ClaimedAt: claimedAt,
	}
}

func TestClaimRepo_InsertClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewClaimRepo(db)

	mock.ExpectExec("INSERT INTO delivery_claims").
		WithArgs("claim-1", "E1", "big_sale", "C1", "pending", claimedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertClaim(context.Background(), testClaim())
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_InsertClaim_ConflictIsNotAnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewClaimRepo(db)

	mock.ExpectExec("ON CONFLICT \\(event_id, celebration_type, channel_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO delivery_claims").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	inserted, err := repo.InsertClaim(context.Background(), testClaim())
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.InsertClaim(context.Background(), testClaim())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_InsertClaim_StoreError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO delivery_claims").WillReturnError(errors.New("connection reset"))

	_, err := NewClaimRepo(db).InsertClaim(context.Background(), testClaim())
	assert.Error(t, err)
}

func TestClaimRepo_HasClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewClaimRepo(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("E1", "tgl").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("E2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("E1", "big_sale", "C1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ctx := context.Background()
	ok, err := repo.HasClaim(ctx, "E1", domain.CelebrationTGL)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasAnyClaim(ctx, "E2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimExists(ctx, domain.ClaimKey{EventID: "E1", Type: domain.CelebrationBigSale, ChannelID: "C1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_UpdateClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewClaimRepo(db)

	mock.ExpectExec("UPDATE delivery_claims SET status").
		WithArgs("claim-1", "failed", "webhook returned 500").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE delivery_claims SET status").
		WithArgs("ghost", "success", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateClaim(context.Background(), "claim-1", domain.ClaimFailed, "webhook returned 500"))
	err := repo.UpdateClaim(context.Background(), "ghost", domain.ClaimSuccess, "")
	assert.ErrorIs(t, err, ledger.ErrClaimNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepo_DeleteClaims(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM delivery_claims").
		WithArgs("E1", "").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewClaimRepo(db).DeleteClaims(context.Background(), "E1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestClaimRepo_ListPending(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	cutoff := claimedAt.Add(time.Hour)
	mock.ExpectQuery("WHERE status = 'pending' AND claimed_at < \\$1").
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "celebration_type", "channel_id", "status", "error", "claimed_at", "updated_at"}).
			AddRow("claim-1", "E1", "big_sale", "C1", "pending", "", claimedAt, claimedAt))

	claims, err := NewClaimRepo(db).ListPending(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, domain.CelebrationBigSale, claims[0].Type)
	assert.Equal(t, domain.ClaimPending, claims[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
