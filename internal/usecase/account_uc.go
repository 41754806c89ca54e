// File: internal/usecase/account_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// CreatedStudent is returned by CreateStudent so the teacher can hand the
// generated password to the student once. It is never stored in clear.
type CreatedStudent struct {
	Account  *model.Account
	Password string
}

type AccountUseCase interface {
	// Register self-signup: student role, unapproved, default credits.
	Register(ctx context.Context, username, fullName, password string) (*model.Account, error)
	// CreateStudent teacher-initiated creation: approved immediately,
	// caller-chosen initial balance, username doubles as the first password.
	CreateStudent(ctx context.Context, actorID, username, fullName string, initialCredits int) (*CreatedStudent, error)
	SetApproved(ctx context.Context, actorID, userID string, approved bool) error
	Authenticate(ctx context.Context, username, password string) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context, offset, limit int) ([]*model.Account, error)
}

type accountUC struct {
	accounts       repository.AccountRepository
	defaultCredits int
	log            *zerolog.Logger
}

func NewAccountUseCase(accounts repository.AccountRepository, defaultCredits int, logger *zerolog.Logger) *accountUC {
	l := logger.With().Str("component", "AccountUC").Logger()
	return &accountUC{accounts: accounts, defaultCredits: defaultCredits, log: &l}
}

func (u *accountUC) Register(ctx context.Context, username, fullName, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.accounts.FindByUsername(ctx, nil, username); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	a := &model.Account{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     fullName,
		Role:         model.RoleStudent,
		Credits:      u.defaultCredits,
		Approved:     false,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.accounts.Save(ctx, nil, a); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", a.ID).Str("username", username).Msg("student registered, awaiting approval")
	return a, nil
}

func (u *accountUC) CreateStudent(ctx context.Context, actorID, username, fullName string, initialCredits int) (*CreatedStudent, error) {
	actor, err := u.accounts.FindByID(ctx, nil, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsTeacher() {
		return nil, domain.ErrForbidden
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	if initialCredits < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.accounts.FindByUsername(ctx, nil, username); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if fullName == "" {
		fullName = username
	}

	// The username is the initial password; the teacher passes it on and
	// the student is expected to change it.
	password := username
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	a := &model.Account{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     fullName,
		Role:         model.RoleStudent,
		Credits:      initialCredits,
		Approved:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.accounts.Save(ctx, nil, a); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", a.ID).Str("actor_id", actorID).Int("credits", initialCredits).Msg("student created by teacher")
	return &CreatedStudent{Account: a, Password: password}, nil
}

func (u *accountUC) SetApproved(ctx context.Context, actorID, userID string, approved bool) error {
	actor, err := u.accounts.FindByID(ctx, nil, actorID)
	if err != nil {
		return err
	}
	if !actor.IsTeacher() {
		return domain.ErrForbidden
	}
	if _, err := u.accounts.FindByID(ctx, nil, userID); err != nil {
		return err
	}
	return u.accounts.SetApproved(ctx, nil, userID, approved)
}

func (u *accountUC) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	a, err := u.accounts.FindByUsername(ctx, nil, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrUnauthorized
	}
	if !a.Approved {
		return nil, domain.ErrNotApproved
	}
	return a, nil
}

func (u *accountUC) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return u.accounts.FindByID(ctx, nil, id)
}

func (u *accountUC) List(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	return u.accounts.List(ctx, nil, offset, limit)
}
