package service

import (
	"fmt"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
)

// Capability checks are one function per operation taking (caller, resource)
// and returning allow/deny. They compose explicitly instead of sitting on a
// permission class hierarchy.

func canConfirmInvestment(caller *model.User) error {
	if !caller.IsStaff {
		return fmt.Errorf("%w: only staff can confirm investments", apperr.ErrPermission)
	}
	return nil
}

func canCancelInvestment(caller *model.User, inv *model.Investment) error {
	if caller.ID != inv.InvestorID {
		return fmt.Errorf("%w: only the investor can cancel their investment", apperr.ErrPermission)
	}
	return nil
}

func canViewTransactions(caller *model.User, ownerID uint64) error {
	if caller.ID != ownerID && !caller.IsStaff {
		return fmt.Errorf("%w: transactions are visible to their owner only", apperr.ErrPermission)
	}
	return nil
}

func canViewProjectInvestments(caller *model.User, project *model.Project) error {
	if caller.ID != project.OwnerID && !caller.IsStaff {
		return fmt.Errorf("%w: project investments are visible to the project owner only", apperr.ErrPermission)
	}
	return nil
}
