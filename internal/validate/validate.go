// Package validate wraps a shared go-playground validator with English
// messages and the project's custom tags.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Service holds the validator and its translator.
type Service struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Service
)

// Get returns the validator singleton, initializing on first use.
func Get() *Service {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer toml, then json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"toml", "json"} {
				tag := fld.Tag.Get(key)
				if tag == "-" || tag == "" {
					continue
				}
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				return tag
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerOneOfFold(v, trans, "decision", "must be accept or reject", "accept", "reject")
		registerOneOfFold(v, trans, "policy", "must be midpoint or four_point", "midpoint", "four_point", "four-point")

		svc = &Service{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates s and returns an error whose message lists every failing
// field in plain English.
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldPath(fe)+": "+fe.Translate(Get().Translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func registerOneOfFold(v *validator.Validate, trans ut.Translator, tag, msg string, allowed ...string) {
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		got := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		for _, a := range allowed {
			if got == a {
				return true
			}
		}
		return false
	})
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, "{0} "+msg, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
