package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/money"
	"github.com/fundflow/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService owns the transaction table: balance computation and the
// payment-gateway deposit/withdrawal flows. Ledger amounts are kept in the
// base currency; foreign-currency requests are converted on entry.
type LedgerService struct {
	repo         repo.RepositoryInterface
	wallets      *WalletService
	conv         *money.Converter
	baseCurrency string
	log          *zap.SugaredLogger
}

func NewLedgerService(r repo.RepositoryInterface, wallets *WalletService, conv *money.Converter, baseCurrency string, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{repo: r, wallets: wallets, conv: conv, baseCurrency: baseCurrency, log: logger}
}

// Balance nets the user's completed ledger entries:
// deposits - withdrawals - investments - commissions.
// A Redis mirror serves repeat reads; a miss recomputes from the store.
func (s *LedgerService) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return bal, nil
	}
	bal, err := s.balanceIn(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, userID, bal); err != nil {
		s.log.Warnf("cache balance user=%d: %v", userID, err)
	}
	return bal, nil
}

// balanceIn computes the balance inside an existing transaction so workflow
// services can mirror it atomically with their own writes.
func (s *LedgerService) balanceIn(ctx context.Context, tx *gorm.DB, userID uint64) (decimal.Decimal, error) {
	deposits, err := s.repo.SumTransactions(ctx, tx, userID, model.KindDeposit, model.TxCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	withdrawals, err := s.repo.SumTransactions(ctx, tx, userID, model.KindWithdrawal, model.TxCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	investments, err := s.repo.SumTransactions(ctx, tx, userID, model.KindInvestment, model.TxCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	commissions, err := s.repo.SumTransactions(ctx, tx, userID, model.KindCommission, model.TxCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	return deposits.Sub(withdrawals).Sub(investments).Sub(commissions), nil
}

// CreateDepositIntent records a pending deposit correlated to a
// payment-gateway reference. The gateway glue upstream owns the reference.
func (s *LedgerService) CreateDepositIntent(ctx context.Context, userID uint64, amount decimal.Decimal, currency, reference string) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", apperr.ErrValidation)
	}
	base, err := s.conv.Convert(amount, currency, s.baseCurrency)
	if err != nil {
		return nil, err
	}
	t := &model.Transaction{
		UserID:      userID,
		Kind:        model.KindDeposit,
		Amount:      base,
		Currency:    s.baseCurrency,
		Status:      model.TxPending,
		ReferenceID: reference,
		Description: "Deposit via payment gateway",
	}
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		return s.repo.CreateTransaction(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RequestWithdrawal records a pending withdrawal, settled out-of-band by the
// gateway. It is rejected up front when it exceeds the spendable balance.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userID uint64, amount decimal.Decimal, currency, reference string) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", apperr.ErrValidation)
	}
	base, err := s.conv.Convert(amount, currency, s.baseCurrency)
	if err != nil {
		return nil, err
	}
	t := &model.Transaction{
		UserID:      userID,
		Kind:        model.KindWithdrawal,
		Amount:      base,
		Currency:    s.baseCurrency,
		Status:      model.TxPending,
		ReferenceID: reference,
		Description: "Withdrawal request",
	}
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		bal, err := s.balanceIn(ctx, tx, userID)
		if err != nil {
			return err
		}
		if bal.LessThan(base) {
			return fmt.Errorf("%w: balance %s, requested %s",
				apperr.ErrInsufficientFunds, bal.StringFixed(2), base.StringFixed(2))
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}
		evt := notificationEvent("Transaction", t.ID, userID, EventWithdrawalRequested,
			"Withdrawal requested",
			fmt.Sprintf("Your withdrawal of %s has been recorded and is being processed.", base.StringFixed(2)),
			map[string]interface{}{"reference_id": reference})
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SettlePayment applies a "payment succeeded" gateway event to the pending
// transaction carrying the reference. Delivery is at-least-once: a reference
// that already settled returns ErrConflict and changes nothing, so the
// gateway can treat redelivery as done.
func (s *LedgerService) SettlePayment(ctx context.Context, reference string) (*model.Transaction, error) {
	var settled *model.Transaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.repo.GetTransactionByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if t.Status != model.TxPending {
			return fmt.Errorf("%w: payment %q already processed (status %s)", apperr.ErrConflict, reference, t.Status)
		}
		now := time.Now()
		if err := s.repo.SetTransactionStatus(ctx, tx, t.ID, model.TxCompleted, &now); err != nil {
			return err
		}
		t.Status = model.TxCompleted
		t.CompletedAt = &now

		var eventType, title, message string
		switch t.Kind {
		case model.KindDeposit:
			if _, err := s.wallets.creditTx(ctx, tx, t.UserID, t.Amount, t.Currency); err != nil {
				return err
			}
			eventType = EventDepositConfirmed
			title = "Deposit confirmed"
			message = fmt.Sprintf("Your deposit of %s has been credited.", t.Amount.StringFixed(2))
		case model.KindWithdrawal:
			if _, err := s.wallets.debitTx(ctx, tx, t.UserID, t.Amount, t.Currency, model.WalletWithdraw); err != nil {
				return err
			}
			eventType = EventWithdrawalConfirmed
			title = "Withdrawal confirmed"
			message = fmt.Sprintf("Your withdrawal of %s has been paid out.", t.Amount.StringFixed(2))
		default:
			return fmt.Errorf("%w: transaction %d is not a payment (kind %s)", apperr.ErrValidation, t.ID, t.Kind)
		}

		bal, err := s.balanceIn(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		if err := s.repo.SetUserBalance(ctx, tx, t.UserID, bal); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, t.UserID, bal); err != nil {
			s.log.Warnf("cache balance user=%d: %v", t.UserID, err)
		}

		evt := notificationEvent("Transaction", t.ID, t.UserID, eventType, title, message,
			map[string]interface{}{"reference_id": reference, "amount": t.Amount.StringFixed(2)})
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		settled = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// FailPayment applies a "payment failed" gateway event: pending -> failed.
func (s *LedgerService) FailPayment(ctx context.Context, reference string) (*model.Transaction, error) {
	var failed *model.Transaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.repo.GetTransactionByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if t.Status != model.TxPending {
			return fmt.Errorf("%w: payment %q already processed (status %s)", apperr.ErrConflict, reference, t.Status)
		}
		if err := s.repo.SetTransactionStatus(ctx, tx, t.ID, model.TxFailed, nil); err != nil {
			return err
		}
		t.Status = model.TxFailed
		evt := notificationEvent("Transaction", t.ID, t.UserID, EventPaymentFailed,
			"Payment failed",
			fmt.Sprintf("Your %s of %s could not be processed.", t.Kind, t.Amount.StringFixed(2)),
			map[string]interface{}{"reference_id": reference})
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		failed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// History lists a user's ledger entries with explicit filters. Staff can
// read anyone's history, users only their own.
func (s *LedgerService) History(ctx context.Context, callerID, userID uint64, kind model.TransactionKind, status model.TransactionStatus, since time.Time, limit int) ([]model.Transaction, error) {
	caller, err := s.repo.GetUser(ctx, s.repo.DB(ctx), callerID)
	if err != nil {
		return nil, err
	}
	if err := canViewTransactions(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, userID, kind, status, since, limit)
}
