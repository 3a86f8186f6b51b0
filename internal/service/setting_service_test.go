package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/model"
)

type fakeSettingStore struct {
	rows    map[string]string
	upserts int
}

func (f *fakeSettingStore) list(keep func(string) bool) []model.AppSetting {
	out := []model.AppSetting{}
	for k, v := range f.rows {
		if keep(k) {
			out = append(out, model.AppSetting{Key: k, Value: v, UpdatedAt: time.Now()})
		}
	}
	return out
}

func (f *fakeSettingStore) GetAll(context.Context) ([]model.AppSetting, error) {
	return f.list(func(string) bool { return true }), nil
}

func (f *fakeSettingStore) GetByKeys(_ context.Context, keys []string) ([]model.AppSetting, error) {
	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	return f.list(func(k string) bool { return want[k] }), nil
}

func (f *fakeSettingStore) UpsertMany(_ context.Context, values map[string]string) error {
	f.upserts++
	for k, v := range values {
		f.rows[k] = v
	}
	return nil
}

func (f *fakeSettingStore) GetByKey(_ context.Context, key string) (*model.AppSetting, error) {
	v, ok := f.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &model.AppSetting{Key: key, Value: v}, nil
}

func newSettingFixture() (*SettingService, *fakeSettingStore, *string) {
	store := &fakeSettingStore{rows: map[string]string{
		model.SettingAppName:       "Exstem",
		model.SettingDefaultLocale: "en",
		"exam_notice":              "Bring a pencil",
	}}
	applied := new(string)
	svc := NewSettingService(store, testLog)
	svc.setLocale = func(l string) { *applied = l }
	return svc, store, applied
}

func TestUpdateSettingsValidation(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr bool
	}{
		{"free form key", map[string]string{"exam_notice": "No phones"}, false},
		{"logo https", map[string]string{model.SettingSchoolLogoURL: "https://school.test/logo.png"}, false},
		{"logo upload path", map[string]string{model.SettingSchoolLogoURL: "/uploads/logo.png"}, false},
		{"logo cleared", map[string]string{model.SettingSchoolLogoURL: ""}, false},
		{"supported locale", map[string]string{model.SettingDefaultLocale: "id"}, false},
		{"blank app name", map[string]string{model.SettingAppName: "  "}, true},
		{"logo ftp", map[string]string{model.SettingSchoolLogoURL: "ftp://school.test/logo.png"}, true},
		{"unknown locale", map[string]string{model.SettingDefaultLocale: "fr"}, true},
		{"bad key", map[string]string{"Exam Notice!": "x"}, true},
		{"one bad key rejects all", map[string]string{"exam_notice": "ok", model.SettingAppName: ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newSettingFixture()
			err := svc.UpdateSettings(context.Background(), tt.values)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSetting)
				assert.Zero(t, store.upserts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, store.upserts)
		})
	}
}

func TestUpdateSettingsAppliesLocale(t *testing.T) {
	svc, store, applied := newSettingFixture()

	require.NoError(t, svc.UpdateSettings(context.Background(), map[string]string{
		" Default_Locale ":   " ID ",
		model.SettingAppName: "  Ujian Sekolah ",
	}))

	assert.Equal(t, "id", store.rows[model.SettingDefaultLocale])
	assert.Equal(t, "Ujian Sekolah", store.rows[model.SettingAppName])
	assert.Equal(t, "id", *applied)
}

func TestPublicSettingsHideInternalKeys(t *testing.T) {
	svc, _, _ := newSettingFixture()

	public, err := svc.GetPublicSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Exstem", public[model.SettingAppName])
	assert.NotContains(t, public, "exam_notice")

	all, err := svc.GetAllSettings(context.Background())
	require.NoError(t, err)
	assert.Contains(t, all, "exam_notice")
}

func TestApplyStoredLocale(t *testing.T) {
	svc, store, applied := newSettingFixture()
	store.rows[model.SettingDefaultLocale] = "id"
	require.NoError(t, svc.ApplyStoredLocale(context.Background()))
	assert.Equal(t, "id", *applied)

	*applied = ""
	store.rows[model.SettingDefaultLocale] = "xx"
	require.NoError(t, svc.ApplyStoredLocale(context.Background()))
	assert.Empty(t, *applied)

	delete(store.rows, model.SettingDefaultLocale)
	require.NoError(t, svc.ApplyStoredLocale(context.Background()))
}
