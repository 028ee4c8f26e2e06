package fund

import (
	"context"

	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/pkg/logger"
	"github.com/ferrobank/ferro/pkg/money"
)

// LogNotifier records committed movements in the structured log. It stands
// in for mail or webhook delivery until an external notifier is wired.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a notifier that logs committed transactions
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "notifier")}
}

// TransactionCommitted logs the committed movement
func (n *LogNotifier) TransactionCommitted(ctx context.Context, tx *ledger.Transaction) {
	n.logger.WithContext(ctx).Info("transaction committed",
		"transaction_id", tx.ID,
		"type", string(tx.Type),
		"direction", string(tx.Direction),
		"status", string(tx.Status),
		"user_id", tx.UserID,
		"account_id", tx.AccountID,
		"amount", money.Format(tx.Amount),
	)
}
