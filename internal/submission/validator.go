package submission

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLen        = 120
	minDescriptionLen = 10
	maxDescriptionLen = 1000
)

// Loose international phone shape: optional +, then digits with common
// separators, 7-20 significant characters.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,18}[0-9]$`)

// StorePayload is a candidate store as received from the form endpoint or
// assembled from dialogue slots. Nothing in it is trusted yet.
type StorePayload struct {
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Location    string   `json:"location"`
	OpensAt     string   `json:"opensAt"`
	ClosesAt    string   `json:"closesAt"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	PhotoRef    string   `json:"photoRef,omitempty"`
}

// NormalizedStore is a validated payload with canonical field values and the
// lookup keys used by the duplicate heuristic.
type NormalizedStore struct {
	Name        string
	NameKey     string
	Phone       string
	Location    string
	LocationKey string
	OpensAt     string
	ClosesAt    string
	Description string
	Latitude    *float64
	Longitude   *float64
	PhotoRef    string
}

// FieldError reports a single rule violation on one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every violation found in one validation pass.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	fields := make([]string, len(v))
	for i, fe := range v {
		fields[i] = fe.Field
	}
	return fmt.Sprintf("validation failed for: %s", strings.Join(fields, ", "))
}

// Fields returns the violated field names in report order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, fe := range v {
		fields[i] = fe.Field
	}
	return fields
}

// Validate checks every rule and reports all violations in a single pass so
// callers can build one combined re-prompt. On success it returns the
// normalized store and a nil error slice.
func Validate(p StorePayload) (*NormalizedStore, ValidationErrors) {
	var errs ValidationErrors

	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		errs = append(errs, FieldError{"name", "name is required"})
	case utf8.RuneCountInString(name) > maxNameLen:
		errs = append(errs, FieldError{"name", fmt.Sprintf("name must be at most %d characters", maxNameLen)})
	}

	phone := normalizePhone(p.Phone)
	if strings.TrimSpace(p.Phone) == "" {
		errs = append(errs, FieldError{"phone", "phone is required"})
	} else if !phonePattern.MatchString(strings.TrimSpace(p.Phone)) {
		errs = append(errs, FieldError{"phone", "phone must be a valid phone number"})
	}

	location := strings.TrimSpace(p.Location)
	if location == "" {
		errs = append(errs, FieldError{"location", "location is required"})
	}

	opensAt, openErr := parseClock(p.OpensAt)
	if openErr != nil {
		errs = append(errs, FieldError{"opensAt", "opensAt must be a time of day like 08:30"})
	}
	closesAt, closeErr := parseClock(p.ClosesAt)
	if closeErr != nil {
		errs = append(errs, FieldError{"closesAt", "closesAt must be a time of day like 21:00"})
	}
	// Ranges wrapping past midnight are legal; the only illegal range is a
	// zero-length one.
	if openErr == nil && closeErr == nil && opensAt == closesAt {
		errs = append(errs, FieldError{"closesAt", "closesAt must differ from opensAt"})
	}

	description := strings.TrimSpace(p.Description)
	switch {
	case description == "":
		errs = append(errs, FieldError{"description", "description is required"})
	case utf8.RuneCountInString(description) < minDescriptionLen:
		errs = append(errs, FieldError{"description", fmt.Sprintf("description must be at least %d characters", minDescriptionLen)})
	case utf8.RuneCountInString(description) > maxDescriptionLen:
		errs = append(errs, FieldError{"description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &NormalizedStore{
		Name:        name,
		NameKey:     NormalizeKey(name),
		Phone:       phone,
		Location:    location,
		LocationKey: NormalizeKey(location),
		OpensAt:     opensAt,
		ClosesAt:    closesAt,
		Description: description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		PhotoRef:    strings.TrimSpace(p.PhotoRef),
	}, nil
}

// NormalizeKey lowercases and collapses whitespace so near-identical names
// and free-text locations compare equal.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// normalizePhone strips separator characters, keeping a leading +.
func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseClock parses a time-of-day value and returns it in canonical HH:MM
// form.
func parseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty time")
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", s)
}
