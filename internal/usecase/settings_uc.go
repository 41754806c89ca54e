// File: internal/usecase/settings_uc.go
package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

// SettingsUseCase resolves runtime configuration with an explicit
// precedence: a value stored in the settings table wins over the process
// default supplied at construction.
type SettingsUseCase interface {
	GetString(ctx context.Context, key string) (string, error)
	CreditsPerSong(ctx context.Context) int
	ProviderAPIKey(ctx context.Context) (string, error)
	Set(ctx context.Context, actorID, key, value string) error
	List(ctx context.Context) ([]*model.Setting, error)
}

type settingsUC struct {
	settings repository.SettingRepository
	accounts repository.AccountRepository
	defaults map[string]string
}

// NewSettingsUseCase constructs the usecase. defaults maps setting keys to
// their process-wide fallback values; empty values mean "no fallback".
func NewSettingsUseCase(settings repository.SettingRepository, accounts repository.AccountRepository, defaults map[string]string) *settingsUC {
	if defaults == nil {
		defaults = map[string]string{}
	}
	return &settingsUC{settings: settings, accounts: accounts, defaults: defaults}
}

func (u *settingsUC) GetString(ctx context.Context, key string) (string, error) {
	s, err := u.settings.Get(ctx, nil, key)
	if err == nil && strings.TrimSpace(s.Value) != "" {
		return s.Value, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if v, ok := u.defaults[key]; ok && v != "" {
		return v, nil
	}
	return "", domain.ErrNotFound
}

// CreditsPerSong returns the configured price of one generation job.
// Falls back to 1 when neither a stored value nor a default parses.
func (u *settingsUC) CreditsPerSong(ctx context.Context) int {
	v, err := u.GetString(ctx, model.SettingCreditsPerSong)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func (u *settingsUC) ProviderAPIKey(ctx context.Context) (string, error) {
	v, err := u.GetString(ctx, model.SettingSunoAPIKey)
	if err != nil {
		return "", domain.ErrConfigMissing
	}
	return v, nil
}

func (u *settingsUC) Set(ctx context.Context, actorID, key, value string) error {
	actor, err := u.accounts.FindByID(ctx, nil, actorID)
	if err != nil {
		return err
	}
	if !actor.IsTeacher() {
		return domain.ErrForbidden
	}
	if strings.TrimSpace(key) == "" {
		return domain.ErrInvalidArgument
	}
	return u.settings.Set(ctx, nil, &model.Setting{
		Key:       key,
		Value:     value,
		UpdatedBy: actorID,
		UpdatedAt: time.Now(),
	})
}

func (u *settingsUC) List(ctx context.Context) ([]*model.Setting, error) {
	return u.settings.List(ctx, nil)
}
