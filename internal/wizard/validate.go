package wizard

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	notBlankTag       = "notblank"
	finiteTag         = "finite"
	templateChoiceTag = "template_choice"
)

type clientSelection struct {
	ClientID string `json:"clientId" validate:"notblank"`
}

type templateSelection struct {
	TemplateID string `json:"templateId"`
	Custom     bool   `json:"customTemplate"`
}

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(finiteTag, finiteValidation)
	validate.RegisterStructValidation(templateSelectionStructValidation, templateSelection{})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, finiteTag, templateChoiceTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " is required"
	case finiteTag:
		return fe.Field() + " must be a finite number"
	case templateChoiceTag:
		return "choose exactly one of a template or a custom protocol"
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// finiteValidation rejects NaN and infinities, which JSON cannot encode.
func finiteValidation(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return true
	}
}

// templateSelectionStructValidation requires exactly one of a template or the custom flag.
func templateSelectionStructValidation(sl validator.StructLevel) {
	ts, ok := sl.Current().Interface().(templateSelection)
	if !ok {
		return
	}
	hasTemplate := strings.TrimSpace(ts.TemplateID) != ""
	if hasTemplate == ts.Custom {
		sl.ReportError(ts.TemplateID, "templateId", "TemplateID", templateChoiceTag, "")
	}
}

// checkStep evaluates the completion predicate of a single step.
func checkStep(s Session, step Step) error {
	var target any
	switch step {
	case StepClientSelection:
		target = clientSelection{ClientID: s.ClientID}
	case StepTemplateSelection:
		target = templateSelection{TemplateID: s.TemplateID, Custom: s.CustomTemplate}
	case StepHealthInformation:
		target = s.Health
	case StepCustomization:
		target = s.Custom
	case StepGeneration:
		return nil
	default:
		return &ValidationError{Step: step, Fields: map[string]string{"step": "unknown step"}}
	}

	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	return &ValidationError{Step: step, Fields: fields}
}
