package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Services groups what the handlers need.
type Services struct {
	Investments *service.InvestmentService
	Ledger      *service.LedgerService
	Wallets     *service.WalletService
}

func RegisterHandlers(r *gin.Engine, svc Services) {
	v1 := r.Group("/v1")
	{
		v1.POST("/investments", createInvestmentHandler(svc))
		v1.GET("/investments", listInvestmentsHandler(svc))
		v1.POST("/investments/:id/confirm", confirmInvestmentHandler(svc))
		v1.POST("/investments/:id/cancel", cancelInvestmentHandler(svc))
		v1.GET("/projects/:id/investments", projectInvestmentsHandler(svc))

		v1.GET("/balance", balanceHandler(svc))
		v1.GET("/transactions", historyHandler(svc))
		v1.GET("/stats/investor", investorStatsHandler(svc))

		v1.POST("/payments/deposits", depositIntentHandler(svc))
		v1.POST("/payments/withdrawals", withdrawalRequestHandler(svc))
		v1.POST("/payments/webhook", paymentWebhookHandler(svc))

		v1.GET("/wallet", walletHandler(svc))
		v1.POST("/wallet/deposit", walletDepositHandler(svc))
		v1.POST("/wallet/withdraw", walletWithdrawHandler(svc))
		v1.GET("/wallet/transactions", walletTransactionsHandler(svc))
		v1.GET("/convert", convertHandler(svc))
	}
}

// callerID reads the identity resolved by the auth layer upstream.
func callerID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID"})
		return 0, false
	}
	return id, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

type createInvestmentReq struct {
	ProjectID     uint64 `json:"project_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

func createInvestmentHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		var req createInvestmentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		var inv *model.Investment
		switch model.PaymentMethod(req.PaymentMethod) {
		case model.PaymentWallet:
			inv, err = svc.Investments.InvestFromWallet(c, caller, req.ProjectID, amt, req.Notes)
		case "", model.PaymentCard, model.PaymentBank:
			method := model.PaymentMethod(req.PaymentMethod)
			if method == "" {
				method = model.PaymentCard
			}
			inv, err = svc.Investments.Create(c, caller, req.ProjectID, amt, method, req.Notes)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_method"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, inv)
	}
}

func listInvestmentsHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		invs, err := svc.Investments.ListMine(c, caller, model.InvestmentStatus(c.Query("status")), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, invs)
	}
}

func confirmInvestmentHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		inv, err := svc.Investments.Confirm(c, id, caller)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func cancelInvestmentHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		inv, err := svc.Investments.Cancel(c, id, caller)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func projectInvestmentsHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		projectID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		invs, err := svc.Investments.ListForProject(c, caller, projectID, model.InvestmentStatus(c.Query("status")), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, invs)
	}
}

func balanceHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		bal, err := svc.Ledger.Balance(c, caller)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func historyHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		userID := caller
		if raw := c.Query("user_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
				return
			}
			userID = parsed
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		sinceStr := c.DefaultQuery("since", time.Now().Add(-30*24*time.Hour).Format(time.RFC3339))
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		txs, err := svc.Ledger.History(c, caller, userID,
			model.TransactionKind(c.Query("kind")),
			model.TransactionStatus(c.Query("status")),
			since, limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func investorStatsHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		stats, err := svc.Investments.Stats(c, caller)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

type paymentReq struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	ReferenceID string `json:"reference_id" binding:"required"`
}

func depositIntentHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		var req paymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		t, err := svc.Ledger.CreateDepositIntent(c, caller, amt, req.Currency, req.ReferenceID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func withdrawalRequestHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		var req paymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		t, err := svc.Ledger.RequestWithdrawal(c, caller, amt, req.Currency, req.ReferenceID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

type webhookReq struct {
	ReferenceID string `json:"reference_id" binding:"required"`
	Event       string `json:"event" binding:"required"`
}

// paymentWebhookHandler receives at-least-once gateway events. A redelivered
// event hits the status check and comes back as a conflict, which we report
// as success so the gateway stops retrying.
func paymentWebhookHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req webhookReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		switch req.Event {
		case "succeeded":
			_, err = svc.Ledger.SettlePayment(c, req.ReferenceID)
		case "failed":
			_, err = svc.Ledger.FailPayment(c, req.ReferenceID)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
			return
		}
		if errors.Is(err, apperr.ErrConflict) {
			c.JSON(http.StatusOK, gin.H{"status": "already processed"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "processed"})
	}
}

func walletHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		w, err := svc.Wallets.GetOrCreate(c, caller)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

type walletMutationReq struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

func walletDepositHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		var req walletMutationReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		wt, err := svc.Wallets.Deposit(c, caller, amt, req.Currency)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, wt)
	}
}

func walletWithdrawHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		var req walletMutationReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		wt, err := svc.Wallets.Withdraw(c, caller, amt, req.Currency)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, wt)
	}
}

func walletTransactionsHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		wts, err := svc.Wallets.Transactions(c, caller, limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, wts)
	}
}

func convertHandler(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		amt, err := decimal.NewFromString(c.Query("amount"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		out, err := svc.Wallets.Convert(amt, c.Query("from"), c.Query("to"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"amount": out, "currency": c.Query("to")})
	}
}
