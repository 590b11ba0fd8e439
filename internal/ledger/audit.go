package ledger

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// AuditReport is the outcome of one conservation sweep.
type AuditReport struct {
	UsersChecked int      `json:"users_checked"`
	Violations   []string `json:"violations,omitempty"`
}

// Audit recomputes, for every user with ledger history, the sum of transaction
// amounts and the latest balance_after, and compares both against the stored
// balance. A violation means a balance was written outside the ledger.
func (l *Ledger) Audit(ctx context.Context) (AuditReport, error) {
	report := AuditReport{}
	userIDs, err := l.Repo.ListUserIDsWithTransactions(ctx)
	if err != nil {
		return report, err
	}
	for _, userID := range userIDs {
		user, err := l.Repo.GetUserByID(ctx, userID)
		if err != nil {
			return report, err
		}
		if user == nil {
			continue
		}
		report.UsersChecked++

		sum, err := l.Repo.SumSeedsTransactionAmounts(ctx, userID)
		if err != nil {
			return report, err
		}
		if sum.Cmp(user.SeedsBalance) != 0 {
			report.Violations = append(report.Violations, violation(userID, "sum", sum.StringFixed(2), user.SeedsBalance.StringFixed(2)))
		}
		latest, err := l.Repo.LatestSeedsTransaction(ctx, userID)
		if err != nil {
			return report, err
		}
		if latest != nil && latest.BalanceAfter.Cmp(user.SeedsBalance) != 0 {
			report.Violations = append(report.Violations, violation(userID, "balance_after", latest.BalanceAfter.StringFixed(2), user.SeedsBalance.StringFixed(2)))
		}
	}
	if l.Logger != nil && len(report.Violations) > 0 {
		l.Logger.Error("ledger conservation violated",
			zap.Int("users_checked", report.UsersChecked),
			zap.Strings("violations", report.Violations),
		)
	}
	return report, nil
}

func violation(userID uint64, kind, got, want string) string {
	return "user " + strconv.FormatUint(userID, 10) + ": " + kind + "=" + got + " balance=" + want
}
