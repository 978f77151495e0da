package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var (
	// custom validation tags & texts
	rollNoTag   = "rollno"
	rollNoText  = "only letters, digits, dashes, slashes and dots are allowed"
	rollNoRegex = regexp.MustCompile(`^[\w\-/.]+$`)

	amountTag  = "amount"
	amountText = "must be a positive amount with at most 2 decimal places"

	nonNegAmountTag  = "nonneg_amount"
	nonNegAmountText = "must be zero or a positive amount with at most 2 decimal places"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimals are validated through their string form
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	// register custom validators
	_ = validate.RegisterValidation(rollNoTag, rollNoValidation)
	RegisterCustomTranslation(validate, translator, rollNoTag, rollNoText)

	_ = validate.RegisterValidation(amountTag, amountValidation)
	RegisterCustomTranslation(validate, translator, amountTag, amountText)

	_ = validate.RegisterValidation(nonNegAmountTag, nonNegAmountValidation)
	RegisterCustomTranslation(validate, translator, nonNegAmountTag, nonNegAmountText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// IsMoney reports whether d has at most 2 decimal places.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Custom Global Validators

func rollNoValidation(fl validator.FieldLevel) bool {
	return rollNoRegex.MatchString(fl.Field().String())
}

func amountValidation(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive() && IsMoney(d)
}

func nonNegAmountValidation(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative() && IsMoney(d)
}
