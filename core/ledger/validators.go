package ledger

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classfund/core"
)

var (
	payMethodTag  = "paymethod"
	payMethodText = "must be one of: " + joinMethods(PaymentMethods)

	payStatusTag  = "paystatus"
	payStatusText = "must be one of: " + joinStatuses(PaymentStatuses)

	evCategoryTag  = "evcategory"
	evCategoryText = "must be one of: Normal, Print"
)

// InitValidators registers the ledger enum validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(payMethodTag, func(fl validator.FieldLevel) bool {
		return PaymentMethod(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, payMethodTag, payMethodText)

	_ = validate.RegisterValidation(payStatusTag, func(fl validator.FieldLevel) bool {
		return PaymentStatus(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, payStatusTag, payStatusText)

	_ = validate.RegisterValidation(evCategoryTag, func(fl validator.FieldLevel) bool {
		return EventCategory(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, evCategoryTag, evCategoryText)
}

func joinMethods(methods []PaymentMethod) string {
	s := make([]string, 0, len(methods))
	for _, m := range methods {
		s = append(s, string(m))
	}
	return strings.Join(s, ", ")
}

func joinStatuses(statuses []PaymentStatus) string {
	s := make([]string, 0, len(statuses))
	for _, st := range statuses {
		s = append(s, string(st))
	}
	return strings.Join(s, ", ")
}
