package model

import "time"

// AppSetting is one row of the app_settings key/value table.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required,min=1,max=50"`
}

// Well-known setting keys. Other keys are stored as free-form text.
const (
	SettingAppName       = "app_name"
	SettingSchoolLogoURL = "school_logo_url"
	SettingDefaultLocale = "default_locale"
)

// SettingKind decides how a known setting's value is checked.
type SettingKind int

const (
	SettingText SettingKind = iota
	SettingURL
	SettingLocale
)

type SettingDefinition struct {
	Kind     SettingKind
	Public   bool
	Required bool
	MaxLen   int
}

var SettingDefinitions = map[string]SettingDefinition{
	SettingAppName:       {Kind: SettingText, Public: true, Required: true, MaxLen: 100},
	SettingSchoolLogoURL: {Kind: SettingURL, Public: true, MaxLen: 500},
	SettingDefaultLocale: {Kind: SettingLocale, Public: true, Required: true, MaxLen: 16},
}

// PublicSettingKeys may be read without authentication.
var PublicSettingKeys = func() []string {
	keys := make([]string, 0, len(SettingDefinitions))
	for k, d := range SettingDefinitions {
		if d.Public {
			keys = append(keys, k)
		}
	}
	return keys
}()
