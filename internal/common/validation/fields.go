package validation

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags, texts & patterns
	mobileTag   = "mobile"
	mobileText  = "{0} must be a 10-digit mobile number"
	mobileRegex = regexp.MustCompile(`^[0-9]{10}$`)

	pincodeTag   = "pincode"
	pincodeText  = "{0} must be a 6-digit pin code"
	pincodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

	ifscTag   = "ifsc"
	ifscText  = "{0} must be a valid IFSC code"
	ifscRegex = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// Validator checks struct fields with tag rules and reports failures keyed by JSON name.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator instantiates the validator with english messages and the intake field rules.
func NewValidator() *Validator {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate, translator: translator}

	_ = validate.RegisterValidation(mobileTag, regexValidation(mobileRegex))
	_ = validate.RegisterValidation(pincodeTag, regexValidation(pincodeRegex))
	_ = validate.RegisterValidation(ifscTag, regexValidation(ifscRegex))
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)

	v.RegisterCustomTranslation(mobileTag, mobileText)
	v.RegisterCustomTranslation(pincodeTag, pincodeText)
	v.RegisterCustomTranslation(ifscTag, ifscText)
	v.RegisterCustomTranslation(notBlankTag, notBlankText)
	v.RegisterCustomTranslation(requiredTag, requiredText, true)

	return v
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func (v *Validator) RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s and returns field name → message. An empty map means valid.
func (v *Validator) Struct(s interface{}) map[string]string {
	out := map[string]string{}
	err := v.validate.Struct(s)
	if err == nil {
		return out
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = fe.Translate(v.translator)
		}
	}
	return out
}

// Var validates a single value against tag, e.g. Var("12345", "pincode").
func (v *Validator) Var(value interface{}, tag string) bool {
	return v.validate.Var(value, tag) == nil
}

// ToResult converts a field map to a ValidationResult.
func ToResult(fields map[string]string) *ValidationResult {
	res := &ValidationResult{Valid: len(fields) == 0}
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)
	for _, field := range names {
		res.Errors = append(res.Errors, ValidationError{Field: field, Message: fields[field], Code: "FIELD_INVALID"})
	}
	return res
}

// Custom Validators

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
