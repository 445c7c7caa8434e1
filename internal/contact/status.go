package contact

import (
	"fmt"
	"strings"
)

// Status records whether the contact is registered with France Travail or a
// Mission Locale. Values are the labels written to the storage file.
type Status string

const (
	StatusYes     Status = "Oui"
	StatusNo      Status = "Non"
	StatusUnknown Status = "Ne sait pas"
)

// Statuses returns the selectable statuses in display order.
func Statuses() []Status {
	return []Status{StatusYes, StatusNo, StatusUnknown}
}

// Next returns the status following s in display order, wrapping around.
// An unrecognized status yields the first one.
func (s Status) Next() Status {
	all := Statuses()
	for i, st := range all {
		if st == s {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// Prev returns the status preceding s in display order, wrapping around.
func (s Status) Prev() Status {
	all := Statuses()
	for i, st := range all {
		if st == s {
			return all[(i+len(all)-1)%len(all)]
		}
	}
	return all[0]
}

// ParseStatus accepts either a stored label ("Oui", "Non", "Ne sait pas") or
// its English key ("yes", "no", "unknown"), case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oui", "yes":
		return StatusYes, nil
	case "non", "no":
		return StatusNo, nil
	case "ne sait pas", "unknown":
		return StatusUnknown, nil
	}
	return "", fmt.Errorf("%w: registration status %q", ErrInputConstraint, s)
}
