package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

// Weekdays are the schedule day names, Monday first.
var Weekdays = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

var (
	// custom validation tags & texts
	notBlankTag    = "notblank"
	notBlankTextEs = "{0} no puede estar vacío"
	notBlankTextEn = "{0} cannot be blank"

	ciTag    = "ci"
	ciTextEs = "{0} debe ser una cédula válida"
	ciTextEn = "{0} must be a valid ID number"
	ciRegex  = regexp.MustCompile(`^([VEve]-?)?\d{6,10}$`)

	phoneTag    = "phone"
	phoneTextEs = "{0} debe ser un número de teléfono válido"
	phoneTextEn = "{0} must be a valid phone number"
	phoneRegex  = regexp.MustCompile(`^\+?[\d\s()-]{7,20}$`)

	hhmmTag    = "hhmm"
	hhmmTextEs = "{0} debe tener el formato HH:MM"
	hhmmTextEn = "{0} must use the HH:MM format"
	hhmmRegex  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	weekdayTag    = "weekday"
	weekdayTextEs = "{0} debe ser un día de la semana"
	weekdayTextEn = "{0} must be a day of the week"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredTextEs  = "este campo es obligatorio"
	requiredTextEn  = "this field is required"
)

// NewTranslator returns the translator for the given locale ("es" or "en"). Unknown locales fall back to "es".
func NewTranslator(locale string) ut.Translator {
	_es := es.New()
	uni := ut.New(_es, _es, en.New())
	translator, found := uni.GetTranslator(strings.ToLower(locale))
	if !found {
		translator, _ = uni.GetTranslator("es")
	}
	return translator
}

// IsSpanish reports whether translator renders Spanish messages.
func IsSpanish(translator ut.Translator) bool {
	return translator == nil || strings.HasPrefix(translator.Locale(), "es")
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	esp := IsSpanish(translator)
	if esp {
		_ = es_translations.RegisterDefaultTranslations(validate, translator)
	} else {
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	}
	pick := func(esText, enText string) string {
		if esp {
			return esText
		}
		return enText
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, pick(notBlankTextEs, notBlankTextEn))

	_ = validate.RegisterValidation(ciTag, regexValidation(ciRegex))
	RegisterCustomTranslation(validate, translator, ciTag, pick(ciTextEs, ciTextEn))

	_ = validate.RegisterValidation(phoneTag, regexValidation(phoneRegex))
	RegisterCustomTranslation(validate, translator, phoneTag, pick(phoneTextEs, phoneTextEn))

	_ = validate.RegisterValidation(hhmmTag, regexValidation(hhmmRegex))
	RegisterCustomTranslation(validate, translator, hhmmTag, pick(hhmmTextEs, hhmmTextEn))

	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	RegisterCustomTranslation(validate, translator, weekdayTag, pick(weekdayTextEs, weekdayTextEn))

	RegisterCustomTranslation(validate, translator, requiredTag, pick(requiredTextEs, requiredTextEn), true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, pick(requiredTextEs, requiredTextEn), true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// "{0}" in text is replaced by the field name.
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

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// regexValidation accepts empty strings, pair it with `required` when the field is mandatory.
func regexValidation(rx *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		str := fl.Field().String()
		return str == "" || rx.MatchString(str)
	}
}

func weekdayValidation(fl validator.FieldLevel) bool {
	return ContainsString(Weekdays, fl.Field().String())
}

// FieldName returns the JSON path of the field in error, without the top-level struct name
// (e.g. "representative.email").
func FieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// TranslateValidationErrors maps every field in error to its translated message.
func TranslateValidationErrors(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		name := FieldName(fe)
		if _, ok := fldErrs[name]; ok {
			continue // keep the first error of each field
		}
		if translator != nil {
			fldErrs[name] = fe.Translate(translator)
		} else {
			fldErrs[name] = fe.Error()
		}
	}
	return fldErrs
}
