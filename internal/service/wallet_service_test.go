package service

import (
	"testing"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWalletDepositWithdraw(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	wt, err := e.wallets.Deposit(e.ctx, 1, decimal.RequireFromString("100"), "EUR")
	assert.NoError(t, err)
	assert.Equal(t, model.WalletDeposit, wt.Kind)
	assert.Equal(t, "100.00", wt.Amount.StringFixed(2))
	assert.Equal(t, "100.00", e.walletOf(t, 1).Balance.StringFixed(2))

	// two withdrawals of 80 against a balance of 100: only the first fits
	_, err = e.wallets.Withdraw(e.ctx, 1, decimal.RequireFromString("80"), "EUR")
	assert.NoError(t, err)
	_, err = e.wallets.Withdraw(e.ctx, 1, decimal.RequireFromString("80"), "EUR")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	w := e.walletOf(t, 1)
	assert.Equal(t, "20.00", w.Balance.StringFixed(2))
	assert.False(t, w.Balance.IsNegative())

	wts, err := e.wallets.Transactions(e.ctx, 1, 10)
	assert.NoError(t, err)
	assert.Len(t, wts, 2) // deposit + the successful withdraw
}

func TestWalletLazyCreation(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	w, err := e.wallets.GetOrCreate(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.Equal(t, "EUR", w.Currency)

	again, err := e.wallets.GetOrCreate(e.ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)

	// withdrawing from a never-funded wallet is an insufficient-funds error
	_, err = e.wallets.Withdraw(e.ctx, 2, decimal.RequireFromString("10"), "EUR")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestWalletForeignCurrencyDeposit(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)

	// 110 USD converts to 100 EUR before crediting
	wt, err := e.wallets.Deposit(e.ctx, 1, decimal.RequireFromString("110"), "USD")
	assert.NoError(t, err)
	assert.Equal(t, "100.00", wt.Amount.StringFixed(2))
	assert.Equal(t, "100.00", e.walletOf(t, 1).Balance.StringFixed(2))

	_, err = e.wallets.Deposit(e.ctx, 1, decimal.RequireFromString("10"), "XXX")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.wallets.Deposit(e.ctx, 1, decimal.RequireFromString("-5"), "EUR")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConvertCurrency(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.wallets.Convert(decimal.RequireFromString("100"), "EUR", "MGA")
	assert.NoError(t, err)
	assert.Equal(t, "480000.00", out.StringFixed(2))

	out, err = e.wallets.Convert(decimal.RequireFromString("480000"), "MGA", "EUR")
	assert.NoError(t, err)
	assert.Equal(t, "100.00", out.StringFixed(2))

	// conversion rounds to 2 decimal places
	out, err = e.wallets.Convert(decimal.RequireFromString("100"), "USD", "EUR")
	assert.NoError(t, err)
	assert.Equal(t, "90.91", out.StringFixed(2))

	_, err = e.wallets.Convert(decimal.RequireFromString("100"), "EUR", "XXX")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.wallets.Convert(decimal.RequireFromString("100"), "XXX", "EUR")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
