package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
)

// ErrTranslatorNotFound is returned when the English translator is missing.
var ErrTranslatorNotFound = errors.New("translator not found")

// FieldErrors maps config keys (token.ttl, store.dsn) to messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "invalid config file"
	}
	b, err := json.Marshal(map[string]string(fe))
	if err != nil {
		return fmt.Sprintf("invalid config file (%v)", err)
	}
	return "invalid config file: " + string(b)
}

type schemaValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newSchemaValidator() (*schemaValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	lang := en.New()
	uni := ut.New(lang, lang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &schemaValidator{validate: validate, translator: trans}, nil
}

func (s *schemaValidator) check(f *File) error {
	err := s.validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[configKey(fe.StructNamespace())] = fe.Translate(s.translator)
	}
	return out
}

// configKey turns File.Token.MaxRefreshPeriod into token.max_refresh_period.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.Join(lo.Map(parts, func(p string, _ int) string {
		return lo.SnakeCase(p)
	}), ".")
}
