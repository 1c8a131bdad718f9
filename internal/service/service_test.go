package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/money"
	"github.com/fundflow/ledger-service/internal/repo"
	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq uint64

type testEnv struct {
	db      *gorm.DB
	repo    *repo.Repository
	wallets *WalletService
	ledger  *LedgerService
	invest  *InvestmentService
	ctx     context.Context
}

// newTestEnv builds the full service stack on an in-memory SQLite DB. The
// Redis mock carries no expectations: cache reads fall through to the store
// and cache writes are logged and ignored, same as a cold cache.
func newTestEnv(t *testing.T) *testEnv {
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", atomic.AddUint64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Project{}, &model.Investment{},
		&model.Transaction{}, &model.Wallet{}, &model.WalletTransaction{},
		&model.OutboxEvent{},
	))

	rdb, _ := redismock.NewClientMock()
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)

	conv, err := money.NewConverter(map[string]string{
		"EUR": "1.0",
		"USD": "1.1",
		"MGA": "4800.0",
	})
	assert.NoError(t, err)

	wallets := NewWalletService(r, conv, "EUR", log)
	ledger := NewLedgerService(r, wallets, conv, "EUR", log)
	invest := NewInvestmentService(r, wallets, ledger, decimal.RequireFromString("0.10"), "EUR", log)

	return &testEnv{db: db, repo: r, wallets: wallets, ledger: ledger, invest: invest, ctx: context.Background()}
}

func (e *testEnv) seedUser(t *testing.T, id uint64, username string, staff bool) *model.User {
	u := &model.User{ID: id, Username: username, IsStaff: staff}
	assert.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedProject(t *testing.T, id, ownerID uint64, needed, minimum string, status model.ProjectStatus) *model.Project {
	p := &model.Project{
		ID:                id,
		OwnerID:           ownerID,
		Title:             fmt.Sprintf("project-%d", id),
		Status:            status,
		AmountNeeded:      decimal.RequireFromString(needed),
		MinimumInvestment: decimal.RequireFromString(minimum),
		Currency:          "EUR",
	}
	assert.NoError(t, e.db.Create(p).Error)
	return p
}

// seedLedgerEntry writes a transaction row directly, bypassing the workflows.
func (e *testEnv) seedLedgerEntry(t *testing.T, userID uint64, kind model.TransactionKind, amount string, status model.TransactionStatus) {
	assert.NoError(t, e.db.Create(&model.Transaction{
		UserID:   userID,
		Kind:     kind,
		Amount:   decimal.RequireFromString(amount),
		Currency: "EUR",
		Status:   status,
	}).Error)
}

func (e *testEnv) investmentTransactions(t *testing.T, investmentID uint64) []model.Transaction {
	var txs []model.Transaction
	assert.NoError(t, e.db.Where("investment_id = ?", investmentID).Order("id").Find(&txs).Error)
	return txs
}

func (e *testEnv) projectRaised(t *testing.T, projectID uint64) decimal.Decimal {
	var p model.Project
	assert.NoError(t, e.db.First(&p, projectID).Error)
	return p.AmountRaised
}

func (e *testEnv) walletOf(t *testing.T, userID uint64) *model.Wallet {
	var w model.Wallet
	assert.NoError(t, e.db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}
