package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepositoryInterface restricts Repo methods (unit-test mocking).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetUser(ctx context.Context, tx *gorm.DB, id uint64) (*model.User, error)
	SetUserInvestorStats(ctx context.Context, tx *gorm.DB, userID uint64, projectsSupported int64, totalInvested, balance decimal.Decimal) error
	SetUserOwnerStats(ctx context.Context, tx *gorm.DB, userID uint64, activeCampaigns, fundedProjects int64, balance decimal.Decimal) error
	SetUserBalance(ctx context.Context, tx *gorm.DB, userID uint64, balance decimal.Decimal) error

	GetProject(ctx context.Context, tx *gorm.DB, id uint64) (*model.Project, error)
	GetProjectForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Project, error)
	SetProjectAmountRaised(ctx context.Context, tx *gorm.DB, projectID uint64, raised decimal.Decimal) error
	CountProjectsByOwner(ctx context.Context, tx *gorm.DB, ownerID uint64, status model.ProjectStatus) (int64, error)

	CreateInvestment(ctx context.Context, tx *gorm.DB, inv *model.Investment) error
	GetInvestment(ctx context.Context, tx *gorm.DB, id uint64) (*model.Investment, error)
	GetInvestmentForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Investment, error)
	SetInvestmentStatus(ctx context.Context, tx *gorm.DB, id uint64, status model.InvestmentStatus, completedAt *time.Time) error
	SumCompletedInvestments(ctx context.Context, tx *gorm.DB, projectID uint64) (decimal.Decimal, error)
	SumInvestmentsByInvestor(ctx context.Context, tx *gorm.DB, investorID uint64, status model.InvestmentStatus) (decimal.Decimal, error)
	CountDistinctProjectsInvested(ctx context.Context, tx *gorm.DB, investorID uint64) (int64, error)
	ListInvestmentsByInvestor(ctx context.Context, investorID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error)
	ListInvestmentsByProject(ctx context.Context, projectID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error)

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	TransactionsByInvestment(ctx context.Context, tx *gorm.DB, investmentID uint64) ([]model.Transaction, error)
	SetTransactionStatusByInvestment(ctx context.Context, tx *gorm.DB, investmentID uint64, status model.TransactionStatus, completedAt *time.Time) error
	GetTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Transaction, error)
	SetTransactionStatus(ctx context.Context, tx *gorm.DB, id uint64, status model.TransactionStatus, completedAt *time.Time) error
	SumTransactions(ctx context.Context, tx *gorm.DB, userID uint64, kind model.TransactionKind, status model.TransactionStatus) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID uint64, kind model.TransactionKind, status model.TransactionStatus, since time.Time, limit int) ([]model.Transaction, error)

	GetWalletByUser(ctx context.Context, userID uint64) (*model.Wallet, error)
	GetWalletForUpdateByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error
	CreateWalletTransaction(ctx context.Context, tx *gorm.DB, wt *model.WalletTransaction) error
	ListWalletTransactions(ctx context.Context, walletID uint64, limit int) ([]model.WalletTransaction, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// forUpdate adds a row lock. SQLite (used by the tests) has no FOR UPDATE;
// its single-writer lock stands in there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ---- users ----

func (r *Repository) GetUser(ctx context.Context, tx *gorm.DB, id uint64) (*model.User, error) {
	var u model.User
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &u, nil
}

// SetUserInvestorStats writes the investor-side derived fields.
func (r *Repository) SetUserInvestorStats(ctx context.Context, tx *gorm.DB, userID uint64, projectsSupported int64, totalInvested, balance decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"projects_supported": projectsSupported,
			"total_invested":     totalInvested,
			"balance":            balance,
		}).Error
}

// SetUserOwnerStats writes the project-owner derived fields.
func (r *Repository) SetUserOwnerStats(ctx context.Context, tx *gorm.DB, userID uint64, activeCampaigns, fundedProjects int64, balance decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"active_campaigns": activeCampaigns,
			"funded_projects":  fundedProjects,
			"balance":          balance,
		}).Error
}

func (r *Repository) SetUserBalance(ctx context.Context, tx *gorm.DB, userID uint64, balance decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Update("balance", balance).Error
}

// ---- projects ----

func (r *Repository) GetProject(ctx context.Context, tx *gorm.DB, id uint64) (*model.Project, error) {
	var p model.Project
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// GetProjectForUpdate locks the project row for aggregate recomputation.
func (r *Repository) GetProjectForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Project, error) {
	var p model.Project
	if err := forUpdate(tx.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) SetProjectAmountRaised(ctx context.Context, tx *gorm.DB, projectID uint64, raised decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&model.Project{}).Where("id = ?", projectID).
		Update("amount_raised", raised).Error
}

func (r *Repository) CountProjectsByOwner(ctx context.Context, tx *gorm.DB, ownerID uint64, status model.ProjectStatus) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Project{}).
		Where("owner_id = ? AND status = ?", ownerID, status).Count(&n).Error
	return n, err
}

// ---- investments ----

func (r *Repository) CreateInvestment(ctx context.Context, tx *gorm.DB, inv *model.Investment) error {
	return tx.WithContext(ctx).Create(inv).Error
}

func (r *Repository) GetInvestment(ctx context.Context, tx *gorm.DB, id uint64) (*model.Investment, error) {
	var inv model.Investment
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: investment %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &inv, nil
}

// GetInvestmentForUpdate locks the investment row so the status precondition
// holds until commit.
func (r *Repository) GetInvestmentForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Investment, error) {
	var inv model.Investment
	if err := forUpdate(tx.WithContext(ctx)).Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: investment %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) SetInvestmentStatus(ctx context.Context, tx *gorm.DB, id uint64, status model.InvestmentStatus, completedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	return tx.WithContext(ctx).Model(&model.Investment{}).Where("id = ?", id).
		Updates(updates).Error
}

// SumCompletedInvestments is the source of truth for a project's
// amount_raised: always a full recomputation, never an increment.
func (r *Repository) SumCompletedInvestments(ctx context.Context, tx *gorm.DB, projectID uint64) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := tx.WithContext(ctx).Model(&model.Investment{}).
		Where("project_id = ? AND status = ?", projectID, model.InvestmentCompleted).
		Select("COALESCE(SUM(amount), 0)").Row()
	err := row.Scan(&total)
	return total, err
}

func (r *Repository) SumInvestmentsByInvestor(ctx context.Context, tx *gorm.DB, investorID uint64, status model.InvestmentStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := tx.WithContext(ctx).Model(&model.Investment{}).
		Where("investor_id = ? AND status = ?", investorID, status).
		Select("COALESCE(SUM(amount), 0)").Row()
	err := row.Scan(&total)
	return total, err
}

func (r *Repository) CountDistinctProjectsInvested(ctx context.Context, tx *gorm.DB, investorID uint64) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Investment{}).
		Where("investor_id = ? AND status = ?", investorID, model.InvestmentCompleted).
		Distinct("project_id").Count(&n).Error
	return n, err
}

func (r *Repository) ListInvestmentsByInvestor(ctx context.Context, investorID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error) {
	q := r.db.WithContext(ctx).Where("investor_id = ?", investorID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var invs []model.Investment
	err := q.Order("created_at desc").Limit(limit).Find(&invs).Error
	return invs, err
}

func (r *Repository) ListInvestmentsByProject(ctx context.Context, projectID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var invs []model.Investment
	err := q.Order("created_at desc").Limit(limit).Find(&invs).Error
	return invs, err
}

// ---- ledger transactions ----

func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (r *Repository) TransactionsByInvestment(ctx context.Context, tx *gorm.DB, investmentID uint64) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := tx.WithContext(ctx).Where("investment_id = ?", investmentID).
		Order("id").Find(&txs).Error
	return txs, err
}

func (r *Repository) SetTransactionStatusByInvestment(ctx context.Context, tx *gorm.DB, investmentID uint64, status model.TransactionStatus, completedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	return tx.WithContext(ctx).Model(&model.Transaction{}).
		Where("investment_id = ?", investmentID).Updates(updates).Error
}

func (r *Repository) GetTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Transaction, error) {
	var t model.Transaction
	if err := forUpdate(tx.WithContext(ctx)).Where("reference_id = ?", reference).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction with reference %q", apperr.ErrNotFound, reference)
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) SetTransactionStatus(ctx context.Context, tx *gorm.DB, id uint64, status model.TransactionStatus, completedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	return tx.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).
		Updates(updates).Error
}

func (r *Repository) SumTransactions(ctx context.Context, tx *gorm.DB, userID uint64, kind model.TransactionKind, status model.TransactionStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := tx.WithContext(ctx).Model(&model.Transaction{}).
		Where("user_id = ? AND kind = ? AND status = ?", userID, kind, status).
		Select("COALESCE(SUM(amount), 0)").Row()
	err := row.Scan(&total)
	return total, err
}

// ListTransactions is the explicit, parameterized history query: empty kind
// or status means no filter on that column.
func (r *Repository) ListTransactions(ctx context.Context, userID uint64, kind model.TransactionKind, status model.TransactionStatus, since time.Time, limit int) ([]model.Transaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND created_at >= ?", userID, since)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var txs []model.Transaction
	err := q.Order("created_at desc").Limit(limit).Find(&txs).Error
	return txs, err
}

// ---- wallets ----

func (r *Repository) GetWalletByUser(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdateByUser locks the wallet row for a read-modify-write.
func (r *Repository) GetWalletForUpdateByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := forUpdate(tx.WithContext(ctx)).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	return tx.WithContext(ctx).Create(w).Error
}

// UpdateWalletBalance re-checks the version under the lock; a zero row count
// means a concurrent writer won.
func (r *Repository) UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wallet %d modified concurrently", apperr.ErrConflict, walletID)
	}
	return nil
}

func (r *Repository) CreateWalletTransaction(ctx context.Context, tx *gorm.DB, wt *model.WalletTransaction) error {
	return tx.WithContext(ctx).Create(wt).Error
}

func (r *Repository) ListWalletTransactions(ctx context.Context, walletID uint64, limit int) ([]model.WalletTransaction, error) {
	var wts []model.WalletTransaction
	err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).
		Order("created_at desc").Limit(limit).Find(&wts).Error
	return wts, err
}

// ---- outbox & events ----

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.RecipientID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// ---- balance cache ----

// CacheBalance mirrors a computed ledger balance into Redis.
func (r *Repository) CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, fmt.Sprintf("balance:%d", userID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads the mirrored balance.
func (r *Repository) GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("balance:%d", userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}
