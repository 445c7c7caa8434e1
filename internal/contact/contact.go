// Package contact defines the contact-intake record, its fixed column schema,
// and the normalization applied when a record is accepted.
package contact

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Layouts used when a Candidate is flattened into a Record.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// Column names of the storage file, in order.
const (
	ColEnteredAt  = "Date de saisie"
	ColLastName   = "Nom"
	ColFirstName  = "Prénom"
	ColAge        = "Âge"
	ColBirthDate  = "Date de Naissance"
	ColAddress    = "Adresse"
	ColPostalCode = "Code Postal"
	ColStatus     = "Statut FT/ML"
	ColPhone      = "Téléphone"
	ColNotes      = "Observations"
)

// Columns returns the fixed column schema in storage order.
// A fresh slice is returned on every call.
func Columns() []string {
	return []string{
		ColEnteredAt, ColLastName, ColFirstName, ColAge, ColBirthDate,
		ColAddress, ColPostalCode, ColStatus, ColPhone, ColNotes,
	}
}

// Record is one persisted row. Every field is kept as the string written to
// the storage file; an unset value is the empty string.
type Record struct {
	EnteredAt  string `csv:"Date de saisie" json:"entered_at"`
	LastName   string `csv:"Nom" json:"last_name"`
	FirstName  string `csv:"Prénom" json:"first_name"`
	Age        string `csv:"Âge" json:"age"`
	BirthDate  string `csv:"Date de Naissance" json:"birth_date"`
	Address    string `csv:"Adresse" json:"address"`
	PostalCode string `csv:"Code Postal" json:"postal_code"`
	Status     string `csv:"Statut FT/ML" json:"registration_status"`
	Phone      string `csv:"Téléphone" json:"phone"`
	Notes      string `csv:"Observations" json:"notes"`
}

// Values returns the record's cells in column order.
func (r Record) Values() []string {
	return []string{
		r.EnteredAt, r.LastName, r.FirstName, r.Age, r.BirthDate,
		r.Address, r.PostalCode, r.Status, r.Phone, r.Notes,
	}
}

// DisplayName returns the "First LAST" pair shown in confirmations.
func (r Record) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Candidate is a record as collected by an input surface, before it is
// validated and normalized by the store.
type Candidate struct {
	LastName   string
	FirstName  string
	Age        int       // 0 means unset.
	BirthDate  time.Time // zero means unset.
	Address    string
	PostalCode string
	Status     Status
	Phone      string
	Notes      string
}

// Validate checks the store-level invariants: last name and phone must be
// present. Range and length limits belong to the input surfaces.
func (c Candidate) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LastName) == "" {
		missing = append(missing, ColLastName)
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, ColPhone)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Normalize flattens the candidate into a Record stamped with now.
// The last name is uppercased and the first name capitalized.
func (c Candidate) Normalize(now time.Time) Record {
	r := Record{
		EnteredAt:  now.Format(TimestampLayout),
		LastName:   NormalizeLastName(c.LastName),
		FirstName:  NormalizeFirstName(c.FirstName),
		Address:    c.Address,
		PostalCode: c.PostalCode,
		Status:     string(c.Status),
		Phone:      c.Phone,
		Notes:      c.Notes,
	}
	if c.Age != 0 {
		r.Age = strconv.Itoa(c.Age)
	}
	if !c.BirthDate.IsZero() {
		r.BirthDate = c.BirthDate.Format(DateLayout)
	}
	return r
}

// Casers are stateful, so each call builds its own.

// NormalizeLastName uppercases a last name: "dupont" -> "DUPONT".
func NormalizeLastName(s string) string {
	return cases.Upper(language.French).String(s)
}

// NormalizeFirstName uppercases the first letter and lowercases the rest:
// "mARIE" -> "Marie", "jean-pierre" -> "Jean-pierre".
func NormalizeFirstName(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.French).String(string(r)) + cases.Lower(language.French).String(s[size:])
}
