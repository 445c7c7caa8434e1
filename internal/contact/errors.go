package contact

import (
	"errors"
	"strings"
)

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = errors.New("contact: validation failed")

// ErrInputConstraint is returned by the input parsers when a field breaks a
// form-level limit (age range, earliest birth date, postal code length).
var ErrInputConstraint = errors.New("contact: input constraint")

// ValidationError reports the required fields that were empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "contact: required fields missing: " + strings.Join(e.Fields, ", ")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RequiredMessage is the message shown to the operator when a submission is
// rejected for missing required fields.
const RequiredMessage = "Le NOM et le TÉLÉPHONE sont obligatoires."
