package response

import (
	"embed"
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const unknownMessageID = "UNKNOWN_ERROR"

var (
	bundle        *i18n.Bundle
	defaultLocale = "en"
	localeMu      sync.RWMutex
)

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			panic(err)
		}
		bundle.MustParseMessageFileBytes(data, e.Name())
	}
}

// SetDefaultLocale sets the language used when a request carries no
// usable Accept-Language header.
func SetDefaultLocale(lang string) {
	if _, err := language.Parse(lang); err != nil {
		return
	}
	localeMu.Lock()
	defaultLocale = lang
	localeMu.Unlock()
}

// GetMessage localizes an error code. langs accepts language tags or raw
// Accept-Language header values, in order of preference.
func GetMessage(code ErrCode, langs ...string) string {
	localeMu.RLock()
	langs = append(langs, defaultLocale)
	localeMu.RUnlock()

	loc := i18n.NewLocalizer(bundle, langs...)
	// A non-nil error with a message means go-i18n fell back to the
	// bundle's default language, which is still a usable answer.
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: string(code)})
	if err == nil || msg != "" {
		return msg
	}

	msg, err = loc.Localize(&i18n.LocalizeConfig{MessageID: unknownMessageID})
	if err != nil {
		return string(code)
	}
	return msg
}

func messageFor(c *gin.Context, code ErrCode) string {
	if c == nil || c.Request == nil {
		return GetMessage(code)
	}
	return GetMessage(code, c.GetHeader("Accept-Language"))
}

// HasLocale reports whether messages are bundled for lang's base language.
func HasLocale(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	for _, t := range bundle.LanguageTags() {
		if b, _ := t.Base(); b == base {
			return true
		}
	}
	return false
}
