package contact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Form-level limits. The store does not enforce these; both input surfaces do.
const (
	MinAge           = 16
	MaxAge           = 100
	PostalCodeMaxLen = 5
)

// MinBirthDate is the earliest birth date a form accepts.
var MinBirthDate = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)

// Input is the raw text of the ten form fields as an input surface collects
// them. The entry timestamp is not part of it: the store stamps it.
type Input struct {
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	Age        string `json:"age"`
	BirthDate  string `json:"birth_date"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Status     string `json:"registration_status"`
	Phone      string `json:"phone"`
	Notes      string `json:"notes"`
}

// Parse converts raw form text into a Candidate, enforcing the form-level
// limits. All constraint violations are reported together.
// Required-field presence is left to Candidate.Validate.
func (in Input) Parse() (Candidate, error) {
	c := Candidate{
		LastName:   in.LastName,
		FirstName:  in.FirstName,
		Address:    in.Address,
		PostalCode: in.PostalCode,
		Phone:      in.Phone,
		Notes:      in.Notes,
		Status:     StatusYes,
	}

	var errs []error
	age, err := ParseAge(in.Age)
	if err != nil {
		errs = append(errs, err)
	}
	c.Age = age

	bd, err := ParseBirthDate(in.BirthDate)
	if err != nil {
		errs = append(errs, err)
	}
	c.BirthDate = bd

	if err := CheckPostalCode(in.PostalCode); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(in.Status) != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			errs = append(errs, err)
		}
		c.Status = st
	}

	return c, errors.Join(errs...)
}

// UnmarshalJSON decodes an Input, accepting age as either a JSON number
// (34) or a string ("34"). Range checks are left to Parse.
func (in *Input) UnmarshalJSON(data []byte) error {
	type plain Input
	var aux struct {
		plain
		Age json.RawMessage `json:"age"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	age, err := ageText(aux.Age)
	if err != nil {
		return err
	}
	*in = Input(aux.plain)
	in.Age = age
	return nil
}

func ageText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("contact: decoding age: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("contact: decoding age: %w", err)
	}
	return n.String(), nil
}

// ParseAge parses an age in [MinAge, MaxAge]. Blank input means unset (0).
func ParseAge(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: age %q is not a number", ErrInputConstraint, s)
	}
	if n < MinAge || n > MaxAge {
		return 0, fmt.Errorf("%w: age %d outside [%d, %d]", ErrInputConstraint, n, MinAge, MaxAge)
	}
	return n, nil
}

// ParseBirthDate parses a YYYY-MM-DD date not before MinBirthDate.
// Blank input means unset (zero time).
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: birth date %q is not YYYY-MM-DD", ErrInputConstraint, s)
	}
	if d.Before(MinBirthDate) {
		return time.Time{}, fmt.Errorf("%w: birth date %s before %s", ErrInputConstraint, s, MinBirthDate.Format(DateLayout))
	}
	return d, nil
}

// CheckPostalCode rejects postal codes longer than PostalCodeMaxLen characters.
func CheckPostalCode(s string) error {
	if n := utf8.RuneCountInString(s); n > PostalCodeMaxLen {
		return fmt.Errorf("%w: postal code has %d characters, max %d", ErrInputConstraint, n, PostalCodeMaxLen)
	}
	return nil
}
