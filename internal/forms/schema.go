// Package forms validates submitted forms against named schemas.
//
// Field rules run for every field first, stopping at the first failing rule
// of each field. Cross-field rules run afterwards and are skipped when their
// target field or any field they depend on has already failed.
package forms

import (
	"context"
	"net/url"
	"strings"
)

// Values is a submitted form, one value per field.
type Values map[string]string

// FromURLValues takes the first value of every key.
func FromURLValues(in url.Values) Values {
	v := make(Values, len(in))
	for k, vals := range in {
		if len(vals) > 0 {
			v[k] = vals[0]
		}
	}
	return v
}

// Get returns the raw value of field.
func (v Values) Get(field string) string {
	return v[field]
}

// Trimmed returns the value of field without surrounding whitespace.
func (v Values) Trimmed(field string) string {
	return strings.TrimSpace(v[field])
}

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the failures of one validation run.
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// Valid reports whether no rule failed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Add records a failure on field.
func (r *Result) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Has reports whether field failed.
func (r Result) Has(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// For returns the messages recorded for field.
func (r Result) For(field string) []string {
	var out []string
	for _, e := range r.Errors {
		if e.Field == field {
			out = append(out, e.Message)
		}
	}
	return out
}

func (r Result) anyFailed(fields []string) bool {
	for _, f := range fields {
		if r.Has(f) {
			return true
		}
	}
	return false
}

// Rule checks a single value and returns an error message, or "" when it passes.
type Rule func(value string) string

// Field binds rules to a form field.
type Field struct {
	Name  string
	Rules []Rule
}

// Check is a cross-field rule body. It sees the whole form.
type Check func(ctx context.Context, v Values) string

// CrossRule reports its failure on Field and only runs when Field and every
// DependsOn field passed their own rules.
type CrossRule struct {
	Field     string
	DependsOn []string
	Check     Check
}

// Schema is a named set of field and cross-field rules.
type Schema struct {
	Name   string
	Fields []Field
	Cross  []CrossRule
}

// Validate runs the schema against v.
func (s *Schema) Validate(ctx context.Context, v Values) Result {
	var r Result
	for _, f := range s.Fields {
		value := v.Get(f.Name)
		for _, rule := range f.Rules {
			if msg := rule(value); msg != "" {
				r.Add(f.Name, msg)
				break
			}
		}
	}

	for _, c := range s.Cross {
		if r.Has(c.Field) || r.anyFailed(c.DependsOn) {
			continue
		}
		if msg := c.Check(ctx, v); msg != "" {
			r.Add(c.Field, msg)
		}
	}
	return r
}
