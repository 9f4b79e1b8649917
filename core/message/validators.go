package message

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

var (
	recipientKindTag    = "recipientkind"
	recipientKindTextEs = "tipo de destinatario inválido"
	recipientKindTextEn = "invalid recipient type"
)

// InitValidators registers the message validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	text := recipientKindTextEn
	if core.IsSpanish(translator) {
		text = recipientKindTextEs
	}
	_ = validate.RegisterValidation(recipientKindTag, func(fl validator.FieldLevel) bool {
		return RecipientKind(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, recipientKindTag, text)
}
