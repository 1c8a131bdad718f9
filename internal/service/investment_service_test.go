package service

import (
	"testing"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreateInvestment(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedProject(t, 10, 2, "5000", "10", model.ProjectActive)

	inv, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("1000"), model.PaymentCard, "first pledge")
	assert.NoError(t, err)
	assert.Equal(t, model.InvestmentPending, inv.Status)
	assert.Equal(t, "100.00", inv.CommissionAmount.StringFixed(2))

	txs := e.investmentTransactions(t, inv.ID)
	assert.Len(t, txs, 2)
	assert.Equal(t, model.KindInvestment, txs[0].Kind)
	assert.Equal(t, model.KindCommission, txs[1].Kind)
	for _, tx := range txs {
		assert.Equal(t, model.TxPending, tx.Status)
	}
	assert.Equal(t, "1000.00", txs[0].Amount.StringFixed(2))
	assert.Equal(t, "100.00", txs[1].Amount.StringFixed(2))

	// pending entries never contribute to the balance or the aggregate
	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.True(t, e.projectRaised(t, 10).IsZero())
}

func TestCreateInvestment_Validations(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedProject(t, 10, 2, "5000", "50", model.ProjectActive)
	e.seedProject(t, 11, 2, "5000", "10", model.ProjectDraft)

	amt := decimal.RequireFromString("100")

	_, err := e.invest.Create(e.ctx, 1, 999, amt, model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.invest.Create(e.ctx, 1, 11, amt, model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("25"), model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.invest.Create(e.ctx, 1, 10, decimal.Zero, model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// owner cannot invest in their own project
	_, err = e.invest.Create(e.ctx, 2, 10, amt, model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// fully funded project rejects new pledges
	assert.NoError(t, e.db.Model(&model.Project{}).Where("id = ?", 10).
		Update("amount_raised", decimal.RequireFromString("5000")).Error)
	_, err = e.invest.Create(e.ctx, 1, 10, amt, model.PaymentCard, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// no partial writes escaped the failed attempts
	var n int64
	assert.NoError(t, e.db.Model(&model.Investment{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
	assert.NoError(t, e.db.Model(&model.Transaction{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestConfirmInvestment(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedUser(t, 99, "admin", true)
	e.seedProject(t, 10, 2, "1000", "1", model.ProjectActive)
	e.seedLedgerEntry(t, 1, model.KindDeposit, "5000", model.TxCompleted)

	first, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("200"), model.PaymentCard, "")
	assert.NoError(t, err)
	second, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("300"), model.PaymentCard, "")
	assert.NoError(t, err)

	// non-staff cannot confirm
	_, err = e.invest.Confirm(e.ctx, first.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	confirmed, err := e.invest.Confirm(e.ctx, first.ID, 99)
	assert.NoError(t, err)
	assert.Equal(t, model.InvestmentCompleted, confirmed.Status)
	assert.NotNil(t, confirmed.CompletedAt)
	for _, tx := range e.investmentTransactions(t, first.ID) {
		assert.Equal(t, model.TxCompleted, tx.Status)
		assert.NotNil(t, tx.CompletedAt)
	}
	assert.Equal(t, "200.00", e.projectRaised(t, 10).StringFixed(2))

	_, err = e.invest.Confirm(e.ctx, second.ID, 99)
	assert.NoError(t, err)
	assert.Equal(t, "500.00", e.projectRaised(t, 10).StringFixed(2))

	// confirming twice is a conflict, not a double credit
	_, err = e.invest.Confirm(e.ctx, first.ID, 99)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "500.00", e.projectRaised(t, 10).StringFixed(2))

	// investor stats and mirrored balance: 5000 - 500 - 50 commission
	var investor model.User
	assert.NoError(t, e.db.First(&investor, 1).Error)
	assert.Equal(t, 1, investor.ProjectsSupported)
	assert.Equal(t, "500.00", investor.TotalInvested.StringFixed(2))
	assert.Equal(t, "4450.00", investor.Balance.StringFixed(2))

	bal, err := e.ledger.Balance(e.ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "4450.00", bal.StringFixed(2))
}

func TestCancelInvestment(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedUser(t, 3, "carol", false)
	e.seedUser(t, 99, "admin", true)
	e.seedProject(t, 10, 2, "1000", "1", model.ProjectActive)

	confirmedInv, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("500"), model.PaymentCard, "")
	assert.NoError(t, err)
	_, err = e.invest.Confirm(e.ctx, confirmedInv.ID, 99)
	assert.NoError(t, err)

	pending, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("150"), model.PaymentCard, "")
	assert.NoError(t, err)

	// only the investor may cancel
	_, err = e.invest.Cancel(e.ctx, pending.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	cancelled, err := e.invest.Cancel(e.ctx, pending.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, model.InvestmentCancelled, cancelled.Status)
	for _, tx := range e.investmentTransactions(t, pending.ID) {
		assert.Equal(t, model.TxCancelled, tx.Status)
	}

	// the aggregate never saw the pending pledge
	assert.Equal(t, "500.00", e.projectRaised(t, 10).StringFixed(2))

	// a settled investment cannot go through this path
	_, err = e.invest.Cancel(e.ctx, confirmedInv.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestInvestFromWallet(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedProject(t, 10, 2, "1000", "1", model.ProjectActive)

	_, err := e.wallets.Deposit(e.ctx, 1, decimal.RequireFromString("1000"), "EUR")
	assert.NoError(t, err)

	inv, err := e.invest.InvestFromWallet(e.ctx, 1, 10, decimal.RequireFromString("200"), "")
	assert.NoError(t, err)
	assert.Equal(t, model.InvestmentCompleted, inv.Status)
	assert.Equal(t, model.PaymentWallet, inv.PaymentMethod)
	assert.NotNil(t, inv.CompletedAt)

	// wallet debited by amount plus commission
	assert.Equal(t, "780.00", e.walletOf(t, 1).Balance.StringFixed(2))
	assert.Equal(t, "200.00", e.projectRaised(t, 10).StringFixed(2))

	txs := e.investmentTransactions(t, inv.ID)
	assert.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, model.TxCompleted, tx.Status)
	}

	// an unaffordable pledge leaves nothing behind
	_, err = e.invest.InvestFromWallet(e.ctx, 1, 10, decimal.RequireFromString("900"), "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	var n int64
	assert.NoError(t, e.db.Model(&model.Investment{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "780.00", e.walletOf(t, 1).Balance.StringFixed(2))
}

func TestInvestorStats(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, 1, "alice", false)
	e.seedUser(t, 2, "bob", false)
	e.seedUser(t, 99, "admin", true)
	e.seedProject(t, 10, 2, "1000", "1", model.ProjectActive)
	e.seedProject(t, 11, 2, "1000", "1", model.ProjectActive)
	e.seedLedgerEntry(t, 1, model.KindDeposit, "1000", model.TxCompleted)

	a, err := e.invest.Create(e.ctx, 1, 10, decimal.RequireFromString("100"), model.PaymentCard, "")
	assert.NoError(t, err)
	b, err := e.invest.Create(e.ctx, 1, 11, decimal.RequireFromString("200"), model.PaymentCard, "")
	assert.NoError(t, err)
	_, err = e.invest.Create(e.ctx, 1, 11, decimal.RequireFromString("50"), model.PaymentCard, "")
	assert.NoError(t, err)
	_, err = e.invest.Confirm(e.ctx, a.ID, 99)
	assert.NoError(t, err)
	_, err = e.invest.Confirm(e.ctx, b.ID, 99)
	assert.NoError(t, err)

	stats, err := e.invest.Stats(e.ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "300.00", stats.TotalInvested.StringFixed(2))
	assert.EqualValues(t, 2, stats.ProjectsSupported)
	assert.Equal(t, "50.00", stats.PendingInvestments.StringFixed(2))
	// 1000 - 300 invested - 30 commission
	assert.Equal(t, "670.00", stats.Balance.StringFixed(2))
}
