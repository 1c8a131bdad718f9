package service

import (
	"encoding/json"

	"github.com/fundflow/ledger-service/internal/model"
)

// Event types carried through the outbox. The poller publishes them to
// Kafka; the notification sink downstream turns them into user messages.
const (
	EventInvestmentCreated   = "investment.created"
	EventInvestmentConfirmed = "investment.confirmed"
	EventInvestmentCancelled = "investment.cancelled"
	EventDepositConfirmed    = "deposit.confirmed"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalConfirmed = "withdrawal.confirmed"
	EventPaymentFailed       = "payment.failed"
	EventWalletDeposit       = "wallet.deposit"
	EventWalletWithdraw      = "wallet.withdraw"
)

func notificationEvent(aggregate string, aggregateID, recipientID uint64, eventType, title, message string, data map[string]interface{}) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"title":   title,
		"message": message,
		"data":    data,
	})
	return &model.OutboxEvent{
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		EventType:   eventType,
		RecipientID: recipientID,
		Payload:     string(payload),
	}
}
