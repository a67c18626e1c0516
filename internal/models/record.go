package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrValidation marks a record rejected before any store call.
var ErrValidation = errors.New("validation failed")

// maxFieldLength caps free-text fields, in runes.
const maxFieldLength = 100

// Kind identifies a logical record type. Each kind maps to one collection in both stores.
type Kind string

const (
	KindSubmission     Kind = "submission"
	KindRepresentative Kind = "representative"
	KindSettings       Kind = "settings"
	KindFormSettings   Kind = "formSettings"
)

// Collection returns the collection name used by both stores.
func (k Kind) Collection() string {
	switch k {
	case KindSubmission:
		return "submissions"
	case KindRepresentative:
		return "representatives"
	case KindSettings:
		return "settings"
	case KindFormSettings:
		return "formSettings"
	}
	return ""
}

// Singleton reports whether a store holds at most one record of this kind.
func (k Kind) Singleton() bool {
	return k == KindSettings || k == KindFormSettings
}

// ParseKind accepts the kind name or its collection name.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindSubmission, KindRepresentative, KindSettings, KindFormSettings} {
		if s == string(k) || s == k.Collection() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrValidation, s)
}

// KindForCollection maps a collection name back to its kind.
func KindForCollection(collection string) (Kind, bool) {
	k, err := ParseKind(collection)
	if err != nil || k.Collection() != collection {
		return "", false
	}
	return k, true
}

// Record is a logical entity the reconciler can write to both stores.
type Record interface {
	Kind() Kind
	// Normalize fills defaults and derived fields.
	Normalize(now time.Time)
	Validate() error
	GetCorrelationID() string
	SetCorrelationID(id string)
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	msg := "invalid fields:"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ","
		}
		msg += " " + f.Field + " (" + f.Message + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ToData converts a record into the flat field map both stores persist.
func ToData(r any) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// FromData decodes a stored field map into a record.
func FromData(data map[string]any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// New returns an empty record of the given kind.
func New(kind Kind) (Record, error) {
	switch kind {
	case KindSubmission:
		return &Submission{}, nil
	case KindRepresentative:
		return &Representative{}, nil
	case KindSettings:
		return &Settings{}, nil
	case KindFormSettings:
		return &FormSettings{}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxFieldLength {
		return s
	}
	return string([]rune(s)[:maxFieldLength])
}
