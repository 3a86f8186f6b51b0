package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	id_translations "github.com/go-playground/validator/v10/translations/id"
	"golang.org/x/text/language"

	"github.com/stemsi/exstem-admin/internal/model"
)

var (
	uni       *ut.UniversalTranslator
	setupOnce sync.Once
)

// domainTags are the custom rules models may use in `binding` tags, with
// their messages per locale ({0} is the field name).
var domainTags = []struct {
	tag string
	fn  govalidator.Func
	msg map[string]string
}{
	{
		tag: "question_type",
		fn:  func(fl govalidator.FieldLevel) bool { return model.QuestionType(fl.Field().String()).Valid() },
		msg: map[string]string{
			"en": "{0} must be a supported question type",
			"id": "{0} harus berupa jenis soal yang didukung",
		},
	},
	{
		tag: "difficulty",
		fn:  func(fl govalidator.FieldLevel) bool { return model.ValidDifficulty(fl.Field().String()) },
		msg: map[string]string{
			"en": "{0} must be easy, medium or hard",
			"id": "{0} harus easy, medium, atau hard",
		},
	},
	{
		tag: "notblank",
		fn:  func(fl govalidator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		msg: map[string]string{
			"en": "{0} must not be blank",
			"id": "{0} tidak boleh kosong",
		},
	},
}

// Setup installs JSON field names, the domain tags and the en/id message
// catalogs on gin's validator. Only the first call has an effect.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" {
				name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
			}
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni = ut.New(enLocale, enLocale, id.New())
		enTrans, _ := uni.GetTranslator("en")
		idTrans, _ := uni.GetTranslator("id")
		_ = en_translations.RegisterDefaultTranslations(v, enTrans)
		_ = id_translations.RegisterDefaultTranslations(v, idTrans)

		for _, d := range domainTags {
			_ = v.RegisterValidation(d.tag, d.fn)
			for lang, trans := range map[string]ut.Translator{"en": enTrans, "id": idTrans} {
				registerMessage(v, trans, d.tag, d.msg[lang])
			}
		}
	})
}

func registerMessage(v *govalidator.Validate, trans ut.Translator, tag, msg string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, msg, true) },
		func(t ut.Translator, fe govalidator.FieldError) string {
			s, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return s
		})
}

// translator picks the best catalog for an Accept-Language value, falling
// back to English.
func translator(acceptLanguage string) ut.Translator {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	locales := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		base, _ := t.Base()
		locales = append(locales, base.String())
	}
	locales = append(locales, "en")
	trans, _ := uni.FindTranslator(locales...)
	return trans
}

// TranslateErrors maps validation failures to field path -> message in the
// caller's language. Any other error (malformed JSON, wrong types) becomes a
// single "detail" entry.
func TranslateErrors(err error, acceptLanguage ...string) map[string]string {
	Setup()
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"detail": err.Error()}
	}

	trans := translator(strings.Join(acceptLanguage, ","))
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe)] = fe.Translate(trans)
	}
	return fields
}

// Bind decodes and validates a JSON body. It returns nil on success.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	return check(c, c.ShouldBindJSON(dst))
}

func BindQuery(c *gin.Context, dst interface{}) map[string]string {
	return check(c, c.ShouldBindQuery(dst))
}

func BindForm(c *gin.Context, dst interface{}) map[string]string {
	return check(c, c.ShouldBindWith(dst, binding.FormMultipart))
}

func check(c *gin.Context, err error) map[string]string {
	if err == nil {
		return nil
	}
	return TranslateErrors(err, c.GetHeader("Accept-Language"))
}

// Struct validates a value built in code (for example a parsed AI reply)
// with the same `binding` rules as request payloads. Messages are English.
func Struct(v interface{}) map[string]string {
	Setup()
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// fieldPath drops the root struct name: "questions[2].text", not
// "Payload.questions[2].text".
func fieldPath(fe govalidator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}
