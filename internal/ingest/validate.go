// Row validation (spec §4.6 stage 5), grounded on wscutils.WscValidate's
// pattern of running go-playground/validator/v10 over a struct and mapping
// each validator.FieldError back to a caller-facing message — generalized
// here from WscValidate's tag→msgid/errcode maps to a tag→exact-text map,
// since spec.md pins the literal failure strings rather than leaving them
// to a message-id table.
package ingest

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	dobRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var (
	validatorOnce sync.Once
	rowValidator  *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("spec_email", func(fl validator.FieldLevel) bool {
			return emailRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("spec_dob", func(fl validator.FieldLevel) bool {
			return dobRe.MatchString(fl.Field().String())
		})
		rowValidator = v
	})
	return rowValidator
}

// rowValidation is the struct go-playground/validator runs the six rules
// from spec §4.6 against. HasIdentifier is a synthetic bool computed before
// validation so "at least one of email or phone" can be expressed as a
// single-field rule rather than a cross-field tag.
type rowValidation struct {
	FirstName     string `validate:"required,max=100"`
	LastName      string `validate:"required,max=100"`
	HasIdentifier bool   `validate:"eq=true"`
	Email         string `validate:"omitempty,spec_email"`
	Phone         string `validate:"omitempty,min=7,max=20"`
	DOB           string `validate:"omitempty,spec_dob"`
}

// messageFor maps one validator.FieldError to the exact failure text spec
// §4.6's table requires.
func messageFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "FirstName":
		if fe.Tag() == "required" {
			return "missing first_name"
		}
		return "first_name exceeds 100 characters"
	case "LastName":
		if fe.Tag() == "required" {
			return "missing last_name"
		}
		return "last_name exceeds 100 characters"
	case "HasIdentifier":
		return "at least one of email or phone is required"
	case "Email":
		return "invalid email format"
	case "Phone":
		return "phone must be 7–20 characters"
	case "DOB":
		return "dob must be YYYY-MM-DD format"
	default:
		return fmt.Sprintf("%s failed validation", fe.Field())
	}
}

// ValidateFields runs spec §4.6's six rules over the already-trimmed
// canonical field values and the (possibly present-and-null) dob. It
// returns the ordered failure messages joined the way ErrorDetail expects
// ("; "-joined) by the caller.
func ValidateFields(firstName, lastName, email, phone string, dob *string) []string {
	rv := rowValidation{
		FirstName:     firstName,
		LastName:      lastName,
		HasIdentifier: email != "" || phone != "",
		Email:         email,
		Phone:         phone,
	}
	if dob != nil {
		rv.DOB = *dob
	}

	err := getValidator().Struct(rv)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	var messages []string
	for _, fe := range validationErrs {
		messages = append(messages, messageFor(fe))
	}
	return messages
}
