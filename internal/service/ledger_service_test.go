package service

import (
	"testing"
	"time"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalance(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	e.seedLedgerEntry(t, 1, model.KindDeposit, "1000", model.TxCompleted)
	e.seedLedgerEntry(t, 1, model.KindDeposit, "500", model.TxPending)
	e.seedLedgerEntry(t, 1, model.KindWithdrawal, "200", model.TxCompleted)
	e.seedLedgerEntry(t, 1, model.KindWithdrawal, "999", model.TxFailed)
	e.seedLedgerEntry(t, 1, model.KindInvestment, "300", model.TxCompleted)
	e.seedLedgerEntry(t, 1, model.KindInvestment, "400", model.TxCancelled)
	e.seedLedgerEntry(t, 1, model.KindCommission, "30", model.TxCompleted)

	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("470")),
		"expected 470, got %s", bal)
}

func TestBalance_EmptyLedger(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestDepositSettlement(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	intent, err := e.ledger.CreateDepositIntent(e.ctx, 1, decimal.RequireFromString("100"), "EUR", "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, model.TxPending, intent.Status)
	assert.Equal(t, "pi_123", intent.ReferenceID)

	// pending intents carry no spendable money
	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())

	settled, err := e.ledger.SettlePayment(e.ctx, "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, model.TxCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)

	bal, err = e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "100.00", bal.StringFixed(2))
	assert.Equal(t, "100.00", e.walletOf(t, 1).Balance.StringFixed(2))

	// at-least-once delivery: a second settle is a safe conflict, no double credit
	_, err = e.ledger.SettlePayment(e.ctx, "pi_123")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "100.00", e.walletOf(t, 1).Balance.StringFixed(2))

	_, err = e.ledger.FailPayment(e.ctx, "pi_123")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.ledger.SettlePayment(e.ctx, "pi_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDepositIntent_ForeignCurrency(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	// 110 USD lands as 100 EUR on the ledger
	intent, err := e.ledger.CreateDepositIntent(e.ctx, 1, decimal.RequireFromString("110"), "USD", "pi_usd")
	assert.NoError(t, err)
	assert.Equal(t, "100.00", intent.Amount.StringFixed(2))
	assert.Equal(t, "EUR", intent.Currency)

	_, err = e.ledger.CreateDepositIntent(e.ctx, 1, decimal.RequireFromString("10"), "XXX", "pi_bad")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.ledger.CreateDepositIntent(e.ctx, 1, decimal.Zero, "EUR", "pi_zero")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestWithdrawalFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	_, err := e.ledger.CreateDepositIntent(e.ctx, 1, decimal.RequireFromString("100"), "EUR", "pi_1")
	assert.NoError(t, err)
	_, err = e.ledger.SettlePayment(e.ctx, "pi_1")
	assert.NoError(t, err)

	req, err := e.ledger.RequestWithdrawal(e.ctx, 1, decimal.RequireFromString("80"), "EUR", "wd_1")
	assert.NoError(t, err)
	assert.Equal(t, model.TxPending, req.Status)

	settled, err := e.ledger.SettlePayment(e.ctx, "wd_1")
	assert.NoError(t, err)
	assert.Equal(t, model.TxCompleted, settled.Status)

	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "20.00", bal.StringFixed(2))
	assert.Equal(t, "20.00", e.walletOf(t, 1).Balance.StringFixed(2))

	// a request beyond the remaining balance is rejected up front
	_, err = e.ledger.RequestWithdrawal(e.ctx, 1, decimal.RequireFromString("50"), "EUR", "wd_2")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestFailPayment(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	_, err := e.ledger.CreateDepositIntent(e.ctx, 1, decimal.RequireFromString("100"), "EUR", "pi_1")
	assert.NoError(t, err)

	failed, err := e.ledger.FailPayment(e.ctx, "pi_1")
	assert.NoError(t, err)
	assert.Equal(t, model.TxFailed, failed.Status)

	// failed entries never contribute and never reach the wallet
	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())
	var n int64
	assert.NoError(t, e.db.Model(&model.Wallet{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestHistory(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedUser(t, 99, "admin", true)

	e.seedLedgerEntry(t, 1, model.KindDeposit, "100", model.TxCompleted)
	e.seedLedgerEntry(t, 1, model.KindWithdrawal, "40", model.TxPending)

	since := time.Now().Add(-time.Hour)

	all, err := e.ledger.History(e.ctx, 1, 1, "", "", since, 10)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	deposits, err := e.ledger.History(e.ctx, 1, 1, model.KindDeposit, model.TxCompleted, since, 10)
	assert.NoError(t, err)
	assert.Len(t, deposits, 1)

	// other users are shut out, staff is not
	_, err = e.ledger.History(e.ctx, 2, 1, "", "", since, 10)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	staffView, err := e.ledger.History(e.ctx, 99, 1, "", "", since, 10)
	assert.NoError(t, err)
	assert.Len(t, staffView, 2)
}
