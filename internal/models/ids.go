package models

import "github.com/google/uuid"

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// CanonicalID parses value as a UUID and returns its lower-case hyphenated
// form. Identifiers are stored and compared only in this form, so upper-case,
// braced, urn:uuid: and unhyphenated spellings of one id are the same id.
// field names the offending input in the returned error.
func CanonicalID(field, value string) (string, error) {
	if value == "" {
		return "", NewInvalidIdentifier(field, value)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return "", NewInvalidIdentifier(field, value)
	}
	return id.String(), nil
}

// IDField points at an identifier to canonicalize in place.
type IDField struct {
	Name  string
	Value *string
}

// CanonicalizeIDs rewrites each field to its canonical form, stopping at
// the first invalid one. Fields after a failure are left untouched.
func CanonicalizeIDs(fields ...IDField) error {
	for _, f := range fields {
		id, err := CanonicalID(f.Name, *f.Value)
		if err != nil {
			return err
		}
		*f.Value = id
	}
	return nil
}

// CanonicalIDList canonicalizes every value in order into a new slice.
func CanonicalIDList(field string, values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		id, err := CanonicalID(field, v)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// SameID reports whether a and b spell the same identifier. Values that do
// not parse are compared as written.
func SameID(a, b string) bool {
	if a == b {
		return true
	}
	ca, errA := CanonicalID("", a)
	cb, errB := CanonicalID("", b)
	return errA == nil && errB == nil && ca == cb
}
