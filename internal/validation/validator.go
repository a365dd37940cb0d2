// Package validation checks request inputs and reports every violation at once.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	apperrors "elkayan/internal/errors"
)

// Validator wraps go-playground/validator with English messages keyed by the
// JSON field name.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a Validator with the project's custom rules registered.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, trans)

	_ = validate.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for _, r := range s {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return false
			}
		}
		return true
	})
	registerMessage(validate, trans, "digits", "{0} must contain only digits", func(fe validator.FieldError) string {
		return fe.Field()
	})
	registerMessage(validate, trans, "eqfield", "The {0} confirmation does not match", func(fe validator.FieldError) string {
		return strings.TrimSuffix(fe.Field(), "_confirmation")
	})

	return &Validator{validate: validate, trans: trans}
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string, param func(validator.FieldError) string) {
	_ = v.RegisterTranslation(tag, trans, func(t ut.Translator) error {
		return t.Add(tag, text, true)
	}, func(t ut.Translator, fe validator.FieldError) string {
		msg, err := t.T(fe.Tag(), param(fe))
		if err != nil {
			return fe.Error()
		}
		return msg
	})
}

// Struct validates s and returns every violation, or nil.
func (v *Validator) Struct(s any) *apperrors.ValidationError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verr := apperrors.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("_", "invalid input")
		return verr
	}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if fe.Tag() == "eqfield" {
			// The mismatch is reported on the field being confirmed.
			field = strings.TrimSuffix(field, "_confirmation")
		}
		verr.Add(field, fe.Translate(v.trans))
	}
	return verr
}

// Email reports whether s is a syntactically valid email address.
func (v *Validator) Email(s string) bool {
	return v.validate.Var(s, "required,email") == nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
