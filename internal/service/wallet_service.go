package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/money"
	"github.com/fundflow/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletService owns the per-user cached balance used by the pay-from-wallet
// path. All mutations are read-modify-writes under a row lock plus a version
// re-check, inside one database transaction.
type WalletService struct {
	repo         repo.RepositoryInterface
	conv         *money.Converter
	baseCurrency string
	log          *zap.SugaredLogger
}

func NewWalletService(r repo.RepositoryInterface, conv *money.Converter, baseCurrency string, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, conv: conv, baseCurrency: baseCurrency, log: logger}
}

// Convert exposes the static-rate currency conversion.
func (s *WalletService) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return s.conv.Convert(amount, from, to)
}

// GetOrCreate returns the user's wallet, creating it lazily on first access.
func (s *WalletService) GetOrCreate(ctx context.Context, userID uint64) (*model.Wallet, error) {
	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &model.Wallet{UserID: userID, Balance: decimal.Zero, Currency: s.baseCurrency}
	if err := s.repo.CreateWallet(ctx, s.repo.DB(ctx), w); err != nil {
		return nil, err
	}
	return w, nil
}

// Deposit adds funds to the wallet, converting to the wallet currency first
// when the request currency differs.
func (s *WalletService) Deposit(ctx context.Context, userID uint64, amount decimal.Decimal, currency string) (*model.WalletTransaction, error) {
	var wt *model.WalletTransaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wt, err = s.creditTx(ctx, tx, userID, amount, currency)
		if err != nil {
			return err
		}
		evt := notificationEvent("Wallet", wt.WalletID, userID, EventWalletDeposit,
			"Deposit received",
			fmt.Sprintf("Your wallet was credited with %s.", wt.Amount.StringFixed(2)),
			map[string]interface{}{"amount": wt.Amount.StringFixed(2)})
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return wt, nil
}

// Withdraw removes funds from the wallet. It fails with ErrInsufficientFunds
// when the (converted) amount exceeds the balance.
func (s *WalletService) Withdraw(ctx context.Context, userID uint64, amount decimal.Decimal, currency string) (*model.WalletTransaction, error) {
	var wt *model.WalletTransaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wt, err = s.debitTx(ctx, tx, userID, amount, currency, model.WalletWithdraw)
		if err != nil {
			return err
		}
		evt := notificationEvent("Wallet", wt.WalletID, userID, EventWalletWithdraw,
			"Withdrawal processed",
			fmt.Sprintf("Your wallet was debited by %s.", wt.Amount.StringFixed(2)),
			map[string]interface{}{"amount": wt.Amount.StringFixed(2)})
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return wt, nil
}

// Transactions lists the wallet's append-only audit trail.
func (s *WalletService) Transactions(ctx context.Context, userID uint64, limit int) ([]model.WalletTransaction, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListWalletTransactions(ctx, w.ID, limit)
}

// creditTx is the tx-scoped deposit used by Deposit and the payment
// settlement flow. The wallet is created lazily when absent.
func (s *WalletService) creditTx(ctx context.Context, tx *gorm.DB, userID uint64, amount decimal.Decimal, currency string) (*model.WalletTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	w, err := s.repo.GetWalletForUpdateByUser(ctx, tx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		w = &model.Wallet{UserID: userID, Balance: decimal.Zero, Currency: s.baseCurrency}
		if err := s.repo.CreateWallet(ctx, tx, w); err != nil {
			return nil, err
		}
	}
	credit, err := s.conv.Convert(amount, currency, w.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, w.Balance.Add(credit), w.Version); err != nil {
		return nil, err
	}
	wt := &model.WalletTransaction{WalletID: w.ID, Kind: model.WalletDeposit, Amount: credit}
	if err := s.repo.CreateWalletTransaction(ctx, tx, wt); err != nil {
		return nil, err
	}
	return wt, nil
}

// debitTx is the tx-scoped withdrawal used by Withdraw, the payment
// settlement flow, and invest-from-wallet.
func (s *WalletService) debitTx(ctx context.Context, tx *gorm.DB, userID uint64, amount decimal.Decimal, currency string, kind model.WalletTxKind) (*model.WalletTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	w, err := s.repo.GetWalletForUpdateByUser(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: wallet is empty", apperr.ErrInsufficientFunds)
		}
		return nil, err
	}
	debit, err := s.conv.Convert(amount, currency, w.Currency)
	if err != nil {
		return nil, err
	}
	if w.Balance.LessThan(debit) {
		return nil, fmt.Errorf("%w: balance %s, requested %s",
			apperr.ErrInsufficientFunds, w.Balance.StringFixed(2), debit.StringFixed(2))
	}
	if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, w.Balance.Sub(debit), w.Version); err != nil {
		return nil, err
	}
	wt := &model.WalletTransaction{WalletID: w.ID, Kind: kind, Amount: debit}
	if err := s.repo.CreateWalletTransaction(ctx, tx, wt); err != nil {
		return nil, err
	}
	return wt, nil
}
