package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	lockGiftQuery     = `SELECT \* FROM "gifts" WHERE id = \$1 AND is_active = \$2 ORDER BY "gifts"\."id" LIMIT \$3 FOR UPDATE`
	getGiftQuery      = `SELECT \* FROM "gifts" WHERE id = \$1 ORDER BY "gifts"\."id" LIMIT \$2`
	sumQuery          = `SELECT COALESCE\(SUM\(amount\), 0\) AS total FROM "gift_contributions" WHERE gift_id = \$1`
	insertEntryQuery  = `INSERT INTO "gift_contributions"`
	updateFlagQuery   = `UPDATE "gifts" SET`
	listEntriesQuery  = `SELECT \* FROM "gift_contributions" WHERE gift_id = \$1 ORDER BY contributed_at DESC, id DESC`
	preloadUsersQuery = `SELECT \* FROM "users"`
	orphanedScanQuery = `SELECT \* FROM "gift_contributions" WHERE NOT EXISTS`
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func giftColumns() []string {
	return []string{"id", "name", "description", "price", "currency", "available", "total", "gift_type", "is_active", "is_contributed"}
}

func giftRow(id uuid.UUID, price string, isContributed bool) *sqlmock.Rows {
	return sqlmock.NewRows(giftColumns()).
		AddRow(id, "Tostadora", "", price, "PEN", 1, 1, "Full payment", true, isContributed)
}

func sumRow(total string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"total"}).AddRow(total)
}

func entryColumns() []string {
	return []string{"id", "gift_id", "user_id", "amount", "receipt_file", "note", "contributed_at"}
}

// expectAppend covers the write half of a successful contribution: the
// ledger insert, the flag update and the reload of the entry list.
func expectAppend(mock sqlmock.Sqlmock, giftID, userID uuid.UUID, entryID int64, funded bool) {
	mock.ExpectQuery(insertEntryQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID))
	mock.ExpectExec(updateFlagQuery).
		WithArgs(funded, sqlmock.AnyArg(), giftID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(listEntriesQuery).
		WithArgs(giftID).
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow(entryID, giftID, userID, "40.00", nil, nil, time.Now()))
	mock.ExpectQuery(preloadUsersQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role"}).
			AddRow(userID, "invitado", "", "guest"))
}

func TestContributePartialFunding(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("0"))
	expectAppend(mock, giftID, userID, 1, false)
	mock.ExpectCommit()

	result, err := service.Contribute(giftID, userID, decimal.NewFromInt(40), nil, nil)
	require.NoError(err)
	require.NotNil(result)
	assert.True(result.TotalContributed.Equal(decimal.NewFromInt(40)), "total should be 40, got %s", result.TotalContributed)
	assert.True(result.Remaining.Equal(decimal.NewFromInt(60)), "remaining should be 60, got %s", result.Remaining)
	assert.False(result.IsFullyFunded)
	assert.False(result.Gift.IsContributed)
	assert.Len(result.Contributions, 1)
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeCrossesThreshold(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("40.00"))
	expectAppend(mock, giftID, userID, 2, true)
	mock.ExpectCommit()

	result, err := service.Contribute(giftID, userID, decimal.NewFromInt(60), nil, nil)
	require.NoError(err)
	assert.True(result.TotalContributed.Equal(decimal.NewFromInt(100)))
	assert.True(result.Remaining.IsZero(), "remaining should be zero, got %s", result.Remaining)
	assert.True(result.IsFullyFunded)
	assert.True(result.Gift.IsContributed)
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeAlreadyFullyFunded(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", true))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("100.00"))
	mock.ExpectRollback()

	_, err := service.Contribute(giftID, uuid.New(), decimal.NewFromInt(1), nil, nil)
	require.ErrorIs(err, ErrAlreadyFullyFunded)
	// No insert was expected; the mock verifies nothing was written.
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeAmountExceedsPrice(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("0"))
	mock.ExpectRollback()

	_, err := service.Contribute(giftID, uuid.New(), decimal.NewFromInt(150), nil, nil)
	var exceedsPrice *AmountExceedsPriceError
	require.ErrorAs(err, &exceedsPrice)
	assert.True(exceedsPrice.Price.Equal(decimal.NewFromInt(100)))
	assert.Contains(exceedsPrice.Error(), "100.00")
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeAmountExceedsRemaining(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("90.00"))
	mock.ExpectRollback()

	_, err := service.Contribute(giftID, uuid.New(), decimal.NewFromInt(20), nil, nil)
	var exceedsRemaining *AmountExceedsRemainingError
	require.ErrorAs(err, &exceedsRemaining)
	assert.True(exceedsRemaining.Remaining.Equal(decimal.NewFromInt(10)), "remaining should be 10, got %s", exceedsRemaining.Remaining)
	assert.Contains(exceedsRemaining.Error(), "10.00")
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeInvalidAmount(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	_, err := service.Contribute(uuid.New(), uuid.New(), decimal.Zero, nil, nil)
	require.ErrorIs(err, ErrInvalidAmount)

	_, err = service.Contribute(uuid.New(), uuid.New(), decimal.NewFromInt(-5), nil, nil)
	require.ErrorIs(err, ErrInvalidAmount)

	// A rejected amount never touches storage.
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeRoundsSubCentAmounts(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()
	userID := uuid.New()

	// 9.999 rounds to the 10.00 the database will store, so the entry
	// closes the gift and the flag is written as funded.
	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("90.00"))
	mock.ExpectQuery(insertEntryQuery).
		WithArgs(giftID, userID, decimal.RequireFromString("10").String(), nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(updateFlagQuery).
		WithArgs(true, sqlmock.AnyArg(), giftID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(listEntriesQuery).
		WithArgs(giftID).
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow(2, giftID, userID, "10.00", nil, nil, time.Now()))
	mock.ExpectQuery(preloadUsersQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role"}).
			AddRow(userID, "invitado", "", "guest"))
	mock.ExpectCommit()

	result, err := service.Contribute(giftID, userID, decimal.RequireFromString("9.999"), nil, nil)
	require.NoError(err)
	assert.True(result.TotalContributed.Equal(decimal.NewFromInt(100)), "total should be 100, got %s", result.TotalContributed)
	assert.True(result.IsFullyFunded)
	assert.True(result.Gift.IsContributed)
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeRejectsAmountRoundingToZero(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	_, err := service.Contribute(uuid.New(), uuid.New(), decimal.RequireFromString("0.004"), nil, nil)
	require.ErrorIs(err, ErrInvalidAmount)
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeGiftNotFound(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(sqlmock.NewRows(giftColumns()))
	mock.ExpectRollback()

	_, err := service.Contribute(giftID, uuid.New(), decimal.NewFromInt(10), nil, nil)
	require.ErrorIs(err, ErrGiftNotFound)
	require.NoError(mock.ExpectationsWereMet())
}

func TestContributeHealsDriftedFlag(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()
	userID := uuid.New()

	// Cached flag says funded, ledger says 10 of 100. The next successful
	// contribution must write the flag back to false.
	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", true))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("10.00"))
	expectAppend(mock, giftID, userID, 2, false)
	mock.ExpectCommit()

	result, err := service.Contribute(giftID, userID, decimal.NewFromInt(20), nil, nil)
	require.NoError(err)
	assert.False(result.IsFullyFunded)
	assert.False(result.Gift.IsContributed)
	require.NoError(mock.ExpectationsWereMet())
}

func TestSettleFullPaysRemaining(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("60.00"))
	expectAppend(mock, giftID, userID, 2, true)
	mock.ExpectCommit()

	result, err := service.SettleFull(giftID, userID, nil, nil)
	require.NoError(err)
	assert.True(result.TotalContributed.Equal(decimal.NewFromInt(100)))
	assert.True(result.IsFullyFunded)
	require.NoError(mock.ExpectationsWereMet())
}

func TestSettleFullAlreadyFunded(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", true))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("100.00"))
	mock.ExpectRollback()

	_, err := service.SettleFull(giftID, uuid.New(), nil, nil)
	require.ErrorIs(err, ErrAlreadyFullyFunded)
	require.NoError(mock.ExpectationsWereMet())
}

func TestFundingStateRecomputesFromLedger(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	// The cached flag is stale (true) while the ledger holds 40 of 100;
	// the computed view must disagree with the cache.
	mock.ExpectQuery(getGiftQuery).
		WithArgs(giftID, 1).
		WillReturnRows(giftRow(giftID, "100.00", true))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("40.00"))

	state, err := service.FundingState(giftID)
	require.NoError(err)
	assert.True(state.Price.Equal(decimal.NewFromInt(100)))
	assert.True(state.TotalContributed.Equal(decimal.NewFromInt(40)))
	assert.True(state.Remaining.Equal(decimal.NewFromInt(60)))
	assert.False(state.IsFullyFunded)
	require.NoError(mock.ExpectationsWereMet())
}

func TestFundingStateGiftNotFound(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectQuery(getGiftQuery).
		WithArgs(giftID, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := service.FundingState(giftID)
	require.ErrorIs(err, ErrGiftNotFound)
	require.NoError(mock.ExpectationsWereMet())
}

func TestOrphanedFindsEntriesWithoutGift(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	deletedGiftID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery(orphanedScanQuery).
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow(7, deletedGiftID, userID, "25.00", nil, nil, time.Now()))

	orphans, err := service.Orphaned()
	require.NoError(err)
	require.Len(orphans, 1)
	assert.Equal(deletedGiftID, orphans[0].GiftID)
	assert.True(orphans[0].Amount.Equal(decimal.NewFromInt(25)))
	require.NoError(mock.ExpectationsWereMet())
}

func TestStorageFailureRollsBack(t *testing.T) {
	require := require.New(t)
	db, mock := newMockDB(t)
	service := NewService(db)

	giftID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGiftQuery).
		WithArgs(giftID, true, 1).
		WillReturnRows(giftRow(giftID, "100.00", false))
	mock.ExpectQuery(sumQuery).
		WithArgs(giftID).
		WillReturnRows(sumRow("0"))
	mock.ExpectQuery(insertEntryQuery).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := service.Contribute(giftID, uuid.New(), decimal.NewFromInt(40), nil, nil)
	require.Error(err)
	require.NotErrorIs(err, ErrInvalidAmount)
	require.NoError(mock.ExpectationsWereMet())
}
