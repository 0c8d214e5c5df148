package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("cronspec", isCronSpec); err != nil {
		return nil, nil, fmt.Errorf("failed to register cronspec validation: %w", err)
	}
	if err := validate.RegisterTranslation("cronspec", trans, func(ut ut.Translator) error {
		return ut.Add("cronspec", "{0} must be a cron expression with seconds", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("cronspec", strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register cronspec translation: %w", err)
	}

	if err := validate.RegisterValidation("clock", isClock); err != nil {
		return nil, nil, fmt.Errorf("failed to register clock validation: %w", err)
	}
	if err := validate.RegisterTranslation("clock", trans, func(ut ut.Translator) error {
		return ut.Add("clock", "{0} must be a time of day in HH:MM form", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("clock", strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register clock translation: %w", err)
	}

	return validate, trans, nil
}

func isCronSpec(fl validator.FieldLevel) bool {
	_, err := cronParser.Parse(fl.Field().String())
	return err == nil
}

func isClock(fl validator.FieldLevel) bool {
	var hour, minute int
	raw := fl.Field().String()
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return false
	}
	return len(raw) == 5 && hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}
