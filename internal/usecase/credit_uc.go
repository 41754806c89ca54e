// File: internal/usecase/credit_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
	"school-song-portal/internal/infra/metrics"
)

// Compile-time check
var _ CreditUseCase = (*creditUC)(nil)

type CreditUseCase interface {
	// AddCredits grants credits to a student. Teacher-only; amount > 0.
	// Returns the student's new balance.
	AddCredits(ctx context.Context, actorID, studentID string, amount int, reason string) (int, error)
	Balance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error)
}

type creditUC struct {
	accounts repository.AccountRepository
	ledger   repository.LedgerRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewCreditUseCase(accounts repository.AccountRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *creditUC {
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{accounts: accounts, ledger: ledger, tm: tm, log: &l}
}

func (u *creditUC) AddCredits(ctx context.Context, actorID, studentID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	actor, err := u.accounts.FindByID(ctx, nil, actorID)
	if err != nil {
		return 0, err
	}
	if !actor.IsTeacher() {
		return 0, domain.ErrForbidden
	}
	if _, err := u.accounts.FindByID(ctx, nil, studentID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "credits added by teacher"
	}

	var newBalance int
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		nb, err := u.accounts.AddCredits(ctx, tx, studentID, amount)
		if err != nil {
			return err
		}
		newBalance = nb
		return u.ledger.Append(ctx, tx, &model.LedgerEntry{
			ID:        ulid.Make().String(),
			UserID:    studentID,
			Amount:    amount,
			Type:      model.LedgerEntryAdd,
			Reason:    reason,
			CreatedBy: actorID,
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		return 0, err
	}
	metrics.IncLedgerEntry(string(model.LedgerEntryAdd))
	u.log.Info().Str("student_id", studentID).Str("actor_id", actorID).Int("amount", amount).Msg("credits granted")
	return newBalance, nil
}

func (u *creditUC) Balance(ctx context.Context, userID string) (int, error) {
	a, err := u.accounts.FindByID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	return a.Credits, nil
}

func (u *creditUC) History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	return u.ledger.ListByUser(ctx, nil, userID, offset, limit)
}
