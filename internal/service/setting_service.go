package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// ErrInvalidSetting wraps the first rejected key of a settings update.
var ErrInvalidSetting = errors.New("invalid setting")

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,99}$`)

const maxSettingValueLen = 2000

// SettingStore is the persistence SettingService needs.
type SettingStore interface {
	GetAll(ctx context.Context) ([]model.AppSetting, error)
	GetByKeys(ctx context.Context, keys []string) ([]model.AppSetting, error)
	UpsertMany(ctx context.Context, values map[string]string) error
	GetByKey(ctx context.Context, key string) (*model.AppSetting, error)
}

// SettingService manages the app_settings table. The default_locale setting
// also drives the fallback language of API error messages.
type SettingService struct {
	store     SettingStore
	log       zerolog.Logger
	setLocale func(string)
}

func NewSettingService(store SettingStore, log zerolog.Logger) *SettingService {
	return &SettingService{
		store:     store,
		log:       log.With().Str("component", "setting_service").Logger(),
		setLocale: response.SetDefaultLocale,
	}
}

func (s *SettingService) GetAllSettings(ctx context.Context) (map[string]string, error) {
	list, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return settingsMap(list), nil
}

// GetPublicSettings returns the keys anonymous clients may read.
func (s *SettingService) GetPublicSettings(ctx context.Context) (map[string]string, error) {
	list, err := s.store.GetByKeys(ctx, model.PublicSettingKeys)
	if err != nil {
		return nil, err
	}
	return settingsMap(list), nil
}

// UpdateSettings validates every pair, then upserts them in one transaction.
// Nothing is written when any pair is rejected.
func (s *SettingService) UpdateSettings(ctx context.Context, values map[string]string) error {
	clean := make(map[string]string, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		value, err := normalizeSetting(key, values[rawKey])
		if err != nil {
			return err
		}
		clean[key] = value
	}
	if len(clean) == 0 {
		return nil
	}

	if err := s.store.UpsertMany(ctx, clean); err != nil {
		s.log.Error().Err(err).Int("count", len(clean)).Msg("Failed to update settings")
		return err
	}
	if locale, ok := clean[model.SettingDefaultLocale]; ok {
		s.setLocale(locale)
	}
	s.log.Info().Strs("keys", keys).Msg("Settings updated")
	return nil
}

// ApplyStoredLocale loads default_locale from the database so a value saved
// through the API survives restarts. A missing row is not an error.
func (s *SettingService) ApplyStoredLocale(ctx context.Context) error {
	setting, err := s.store.GetByKey(ctx, model.SettingDefaultLocale)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if response.HasLocale(setting.Value) {
		s.setLocale(setting.Value)
	}
	return nil
}

func normalizeSetting(key, value string) (string, error) {
	if !settingKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: key %q must be lower_snake_case", ErrInvalidSetting, key)
	}
	value = strings.TrimSpace(value)

	def, known := model.SettingDefinitions[key]
	if !known {
		if utf8.RuneCountInString(value) > maxSettingValueLen {
			return "", fmt.Errorf("%w: %s is too long", ErrInvalidSetting, key)
		}
		return value, nil
	}

	if value == "" {
		if def.Required {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidSetting, key)
		}
		return "", nil
	}
	if def.MaxLen > 0 && utf8.RuneCountInString(value) > def.MaxLen {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidSetting, key, def.MaxLen)
	}

	switch def.Kind {
	case model.SettingURL:
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http" && !strings.HasPrefix(value, "/uploads/")) {
			return "", fmt.Errorf("%w: %s must be an http(s) URL or an /uploads path", ErrInvalidSetting, key)
		}
	case model.SettingLocale:
		value = strings.ToLower(value)
		if !response.HasLocale(value) {
			return "", fmt.Errorf("%w: %s %q has no translations", ErrInvalidSetting, key, value)
		}
	}
	return value, nil
}

func settingsMap(list []model.AppSetting) map[string]string {
	out := make(map[string]string, len(list))
	for _, s := range list {
		out[s.Key] = s.Value
	}
	return out
}
