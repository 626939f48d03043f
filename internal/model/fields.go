package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType tags a registration-form field descriptor.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// FieldDescriptor describes one organizer-defined registration form field.
// The core consumes these generically: it checks presence and type
// validity but never special-cases field names.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"` // for select fields
}

// ValidateResponses checks submitted form responses against the event's
// field descriptors: required fields must be present and non-empty, and
// values must satisfy the field's type tag. Unknown response keys are
// ignored; the form builder owns the schema, not this core.
func ValidateResponses(fields []FieldDescriptor, responses map[string]string) error {
	for _, f := range fields {
		v, ok := responses[f.Name]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			if f.Required {
				return fmt.Errorf("field %q is required", f.Name)
			}
			continue
		}
		if err := f.validate(v); err != nil {
			return err
		}
	}
	return nil
}

func (f FieldDescriptor) validate(v string) error {
	switch f.Type {
	case FieldEmail:
		if !IsValidEmail(v) {
			return fmt.Errorf("field %q is not a valid email address", f.Name)
		}
	case FieldPhone:
		digits := 0
		for _, r := range v {
			switch {
			case r >= '0' && r <= '9':
				digits++
			case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
			default:
				return fmt.Errorf("field %q is not a valid phone number", f.Name)
			}
		}
		if digits < 7 {
			return fmt.Errorf("field %q is not a valid phone number", f.Name)
		}
	case FieldNumber:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("field %q must be a number", f.Name)
		}
	case FieldSelect:
		for _, opt := range f.Options {
			if v == opt {
				return nil
			}
		}
		return fmt.Errorf("field %q must be one of its options", f.Name)
	case FieldCheckbox:
		if v != "true" && v != "false" {
			return fmt.Errorf("field %q must be true or false", f.Name)
		}
	}
	return nil
}

// IsValidEmail does a basic structural check on an email address.
func IsValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
