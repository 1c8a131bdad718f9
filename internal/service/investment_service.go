package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvestmentService drives the investment lifecycle: creation, the
// pending -> completed / cancelled transitions, and the derived aggregates
// those transitions maintain (project amount_raised, user statistics,
// mirrored balances). Every transition commits atomically with the status
// flip of its two ledger transactions.
type InvestmentService struct {
	repo           repo.RepositoryInterface
	wallets        *WalletService
	ledger         *LedgerService
	commissionRate decimal.Decimal
	baseCurrency   string
	log            *zap.SugaredLogger
}

func NewInvestmentService(r repo.RepositoryInterface, wallets *WalletService, ledger *LedgerService, commissionRate decimal.Decimal, baseCurrency string, logger *zap.SugaredLogger) *InvestmentService {
	return &InvestmentService{
		repo:           r,
		wallets:        wallets,
		ledger:         ledger,
		commissionRate: commissionRate,
		baseCurrency:   baseCurrency,
		log:            logger,
	}
}

func (s *InvestmentService) validatePledge(investor *model.User, project *model.Project, amount decimal.Decimal) error {
	if project.Status != model.ProjectActive {
		return fmt.Errorf("%w: project is not open to investment", apperr.ErrValidation)
	}
	if project.AmountRaised.GreaterThanOrEqual(project.AmountNeeded) {
		return fmt.Errorf("%w: project already reached its funding goal", apperr.ErrValidation)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	if amount.LessThan(project.MinimumInvestment) {
		return fmt.Errorf("%w: minimum investment for this project is %s",
			apperr.ErrValidation, project.MinimumInvestment.StringFixed(2))
	}
	if investor.ID == project.OwnerID {
		return fmt.Errorf("%w: cannot invest in your own project", apperr.ErrValidation)
	}
	return nil
}

// Create records a pending investment plus its two pending ledger entries
// (investment debit and commission debit) in one atomic unit. The commission
// is fixed here and never recomputed.
func (s *InvestmentService) Create(ctx context.Context, investorID, projectID uint64, amount decimal.Decimal, method model.PaymentMethod, notes string) (*model.Investment, error) {
	var inv *model.Investment
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		investor, err := s.repo.GetUser(ctx, tx, investorID)
		if err != nil {
			return err
		}
		project, err := s.repo.GetProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := s.validatePledge(investor, project, amount); err != nil {
			return err
		}

		commission := amount.Mul(s.commissionRate).Round(2)
		inv = &model.Investment{
			InvestorID:       investorID,
			ProjectID:        projectID,
			Amount:           amount,
			CommissionAmount: commission,
			Status:           model.InvestmentPending,
			PaymentMethod:    method,
			Notes:            notes,
		}
		if err := s.repo.CreateInvestment(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.createPledgeEntries(ctx, tx, inv, project, model.TxPending, nil); err != nil {
			return err
		}

		evt := notificationEvent("Investment", inv.ID, project.OwnerID, EventInvestmentCreated,
			"New investment",
			fmt.Sprintf("%s pledged %s to your project %q.", investor.Username, amount.StringFixed(2), project.Title),
			map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID})
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("investment created", "investment_id", inv.ID, "project_id", projectID, "amount", amount)
	return inv, nil
}

// createPledgeEntries writes the investment and commission ledger entries
// that share the investment's lifecycle.
func (s *InvestmentService) createPledgeEntries(ctx context.Context, tx *gorm.DB, inv *model.Investment, project *model.Project, status model.TransactionStatus, completedAt *time.Time) error {
	entries := []*model.Transaction{
		{
			UserID:       inv.InvestorID,
			Kind:         model.KindInvestment,
			Amount:       inv.Amount,
			Currency:     s.baseCurrency,
			Status:       status,
			InvestmentID: &inv.ID,
			Description:  fmt.Sprintf("Investment in project %q", project.Title),
			CompletedAt:  completedAt,
		},
		{
			UserID:       inv.InvestorID,
			Kind:         model.KindCommission,
			Amount:       inv.CommissionAmount,
			Currency:     s.baseCurrency,
			Status:       status,
			InvestmentID: &inv.ID,
			Description:  fmt.Sprintf("Commission for the investment in project %q", project.Title),
			CompletedAt:  completedAt,
		},
	}
	for _, t := range entries {
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	return nil
}

// Confirm moves a pending investment to completed (staff only) and folds its
// amount into the project aggregate and the derived user statistics. A
// non-pending investment is rejected with ErrConflict, so re-running a
// confirmation can never double-credit.
func (s *InvestmentService) Confirm(ctx context.Context, investmentID, callerID uint64) (*model.Investment, error) {
	caller, err := s.repo.GetUser(ctx, s.repo.DB(ctx), callerID)
	if err != nil {
		return nil, err
	}
	if err := canConfirmInvestment(caller); err != nil {
		return nil, err
	}

	var inv *model.Investment
	var investorBal decimal.Decimal
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err = s.repo.GetInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvestmentPending {
			return fmt.Errorf("%w: investment already %s", apperr.ErrConflict, inv.Status)
		}
		now := time.Now()
		if err := s.repo.SetInvestmentStatus(ctx, tx, inv.ID, model.InvestmentCompleted, &now); err != nil {
			return err
		}
		if err := s.repo.SetTransactionStatusByInvestment(ctx, tx, inv.ID, model.TxCompleted, &now); err != nil {
			return err
		}
		inv.Status = model.InvestmentCompleted
		inv.CompletedAt = &now

		project, err := s.settleInvestment(ctx, tx, inv)
		if err != nil {
			return err
		}
		investorBal, err = s.refreshInvestorStats(ctx, tx, inv.InvestorID)
		if err != nil {
			return err
		}
		if _, err := s.refreshOwnerStats(ctx, tx, project.OwnerID); err != nil {
			return err
		}

		investor, err := s.repo.GetUser(ctx, tx, inv.InvestorID)
		if err != nil {
			return err
		}
		events := []*model.OutboxEvent{
			notificationEvent("Investment", inv.ID, inv.InvestorID, EventInvestmentConfirmed,
				"Investment confirmed",
				fmt.Sprintf("Your investment of %s in project %q has been confirmed.", inv.Amount.StringFixed(2), project.Title),
				map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID}),
			notificationEvent("Investment", inv.ID, project.OwnerID, EventInvestmentConfirmed,
				"Investment confirmed",
				fmt.Sprintf("The investment of %s by %s in your project %q has been confirmed.", inv.Amount.StringFixed(2), investor.Username, project.Title),
				map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID}),
		}
		for _, evt := range events {
			if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheBalance(ctx, inv.InvestorID, investorBal); err != nil {
		s.log.Warnf("cache balance user=%d: %v", inv.InvestorID, err)
	}
	s.log.Infow("investment confirmed", "investment_id", inv.ID, "by", callerID)
	return inv, nil
}

// Cancel moves a pending investment to cancelled (investor only). Pending
// investments never contributed to any aggregate, so nothing is recomputed.
func (s *InvestmentService) Cancel(ctx context.Context, investmentID, callerID uint64) (*model.Investment, error) {
	caller, err := s.repo.GetUser(ctx, s.repo.DB(ctx), callerID)
	if err != nil {
		return nil, err
	}

	var inv *model.Investment
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err = s.repo.GetInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		if err := canCancelInvestment(caller, inv); err != nil {
			return err
		}
		if inv.Status != model.InvestmentPending {
			return fmt.Errorf("%w: only pending investments can be cancelled", apperr.ErrConflict)
		}
		if err := s.repo.SetInvestmentStatus(ctx, tx, inv.ID, model.InvestmentCancelled, nil); err != nil {
			return err
		}
		if err := s.repo.SetTransactionStatusByInvestment(ctx, tx, inv.ID, model.TxCancelled, nil); err != nil {
			return err
		}
		inv.Status = model.InvestmentCancelled

		project, err := s.repo.GetProject(ctx, tx, inv.ProjectID)
		if err != nil {
			return err
		}
		evt := notificationEvent("Investment", inv.ID, project.OwnerID, EventInvestmentCancelled,
			"Investment cancelled",
			fmt.Sprintf("The investment of %s by %s in your project %q was cancelled.", inv.Amount.StringFixed(2), caller.Username, project.Title),
			map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID})
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("investment cancelled", "investment_id", inv.ID, "by", callerID)
	return inv, nil
}

// InvestFromWallet pays a pledge directly out of the investor's wallet: the
// wallet is debited by amount plus commission and the investment lands
// already completed, in one atomic unit.
func (s *InvestmentService) InvestFromWallet(ctx context.Context, investorID, projectID uint64, amount decimal.Decimal, notes string) (*model.Investment, error) {
	var inv *model.Investment
	var investorBal decimal.Decimal
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		investor, err := s.repo.GetUser(ctx, tx, investorID)
		if err != nil {
			return err
		}
		project, err := s.repo.GetProjectForUpdate(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := s.validatePledge(investor, project, amount); err != nil {
			return err
		}

		commission := amount.Mul(s.commissionRate).Round(2)
		if _, err := s.wallets.debitTx(ctx, tx, investorID, amount.Add(commission), s.baseCurrency, model.WalletInvestment); err != nil {
			return err
		}

		now := time.Now()
		inv = &model.Investment{
			InvestorID:       investorID,
			ProjectID:        projectID,
			Amount:           amount,
			CommissionAmount: commission,
			Status:           model.InvestmentCompleted,
			PaymentMethod:    model.PaymentWallet,
			Notes:            notes,
			CompletedAt:      &now,
		}
		if err := s.repo.CreateInvestment(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.createPledgeEntries(ctx, tx, inv, project, model.TxCompleted, &now); err != nil {
			return err
		}

		if _, err := s.settleInvestment(ctx, tx, inv); err != nil {
			return err
		}
		investorBal, err = s.refreshInvestorStats(ctx, tx, investorID)
		if err != nil {
			return err
		}
		if _, err := s.refreshOwnerStats(ctx, tx, project.OwnerID); err != nil {
			return err
		}

		events := []*model.OutboxEvent{
			notificationEvent("Investment", inv.ID, investorID, EventInvestmentConfirmed,
				"Investment confirmed",
				fmt.Sprintf("Your wallet investment of %s in project %q has been confirmed.", amount.StringFixed(2), project.Title),
				map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID}),
			notificationEvent("Investment", inv.ID, project.OwnerID, EventInvestmentConfirmed,
				"Investment confirmed",
				fmt.Sprintf("%s invested %s in your project %q.", investor.Username, amount.StringFixed(2), project.Title),
				map[string]interface{}{"investment_id": inv.ID, "project_id": project.ID}),
		}
		for _, evt := range events {
			if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheBalance(ctx, investorID, investorBal); err != nil {
		s.log.Warnf("cache balance user=%d: %v", investorID, err)
	}
	s.log.Infow("wallet investment completed", "investment_id", inv.ID, "project_id", projectID)
	return inv, nil
}

// settleInvestment recomputes the project funding aggregate under the
// project row lock. Recomputation over completed investments is idempotent,
// so retries cannot drift the aggregate.
func (s *InvestmentService) settleInvestment(ctx context.Context, tx *gorm.DB, inv *model.Investment) (*model.Project, error) {
	project, err := s.repo.GetProjectForUpdate(ctx, tx, inv.ProjectID)
	if err != nil {
		return nil, err
	}
	raised, err := s.repo.SumCompletedInvestments(ctx, tx, inv.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetProjectAmountRaised(ctx, tx, inv.ProjectID, raised); err != nil {
		return nil, err
	}
	project.AmountRaised = raised
	return project, nil
}

func (s *InvestmentService) refreshInvestorStats(ctx context.Context, tx *gorm.DB, userID uint64) (decimal.Decimal, error) {
	supported, err := s.repo.CountDistinctProjectsInvested(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := s.repo.SumInvestmentsByInvestor(ctx, tx, userID, model.InvestmentCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := s.ledger.balanceIn(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.SetUserInvestorStats(ctx, tx, userID, supported, total, bal); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

func (s *InvestmentService) refreshOwnerStats(ctx context.Context, tx *gorm.DB, userID uint64) (decimal.Decimal, error) {
	active, err := s.repo.CountProjectsByOwner(ctx, tx, userID, model.ProjectActive)
	if err != nil {
		return decimal.Zero, err
	}
	funded, err := s.repo.CountProjectsByOwner(ctx, tx, userID, model.ProjectFunded)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := s.ledger.balanceIn(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.SetUserOwnerStats(ctx, tx, userID, active, funded, bal); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

// InvestorStats is the investor-side statistics snapshot.
type InvestorStats struct {
	TotalInvested      decimal.Decimal `json:"total_invested"`
	ProjectsSupported  int64           `json:"projects_supported"`
	PendingInvestments decimal.Decimal `json:"pending_investments"`
	Balance            decimal.Decimal `json:"balance"`
}

// Stats computes the investor statistics on demand.
func (s *InvestmentService) Stats(ctx context.Context, userID uint64) (*InvestorStats, error) {
	db := s.repo.DB(ctx)
	if _, err := s.repo.GetUser(ctx, db, userID); err != nil {
		return nil, err
	}
	total, err := s.repo.SumInvestmentsByInvestor(ctx, db, userID, model.InvestmentCompleted)
	if err != nil {
		return nil, err
	}
	supported, err := s.repo.CountDistinctProjectsInvested(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.SumInvestmentsByInvestor(ctx, db, userID, model.InvestmentPending)
	if err != nil {
		return nil, err
	}
	bal, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InvestorStats{
		TotalInvested:      total,
		ProjectsSupported:  supported,
		PendingInvestments: pending,
		Balance:            bal,
	}, nil
}

// ListMine returns the caller's investments, newest first.
func (s *InvestmentService) ListMine(ctx context.Context, userID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error) {
	return s.repo.ListInvestmentsByInvestor(ctx, userID, status, limit)
}

// ListForProject returns a project's investments to its owner or staff.
func (s *InvestmentService) ListForProject(ctx context.Context, callerID, projectID uint64, status model.InvestmentStatus, limit int) ([]model.Investment, error) {
	db := s.repo.DB(ctx)
	caller, err := s.repo.GetUser(ctx, db, callerID)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.GetProject(ctx, db, projectID)
	if err != nil {
		return nil, err
	}
	if err := canViewProjectInvestments(caller, project); err != nil {
		return nil, err
	}
	return s.repo.ListInvestmentsByProject(ctx, projectID, status, limit)
}
