// Package answers converts raw submitted values into the canonical internal
// shapes the rest of the backend operates on. Raw payloads arrive as
// loosely-typed JSON; this package is the single boundary where they are
// resolved into a tagged union (scalar / set of scalars / set of pairs), so
// that persistence, aggregation, and export never touch untyped values.
package answers

import "encoding/json"

// Kind discriminates the canonical shape of a normalized answer.
type Kind string

const (
	// KindScalar is a single textual value (choice label, rating, free text).
	KindScalar Kind = "scalar"
	// KindSet is an unordered collection of scalar selections (checkboxes).
	KindSet Kind = "set"
	// KindPairs is a collection of matrix row/column selections.
	KindPairs Kind = "pairs"
)

// Pair references one selected matrix cell by the effective identities of
// its row and column.
type Pair struct {
	Row    string `json:"row"`
	Column string `json:"column"`
}

// CanonicalValue is the normalized shape of one answer. Exactly one of
// Scalar, Set, or Pairs is meaningful, selected by Kind.
//
// Unrecognized marks values whose question type was not part of the fixed
// taxonomy at normalization time. They are preserved verbatim (as a scalar)
// so a schema mismatch never loses a respondent's submission; downstream
// layers treat them permissively.
type CanonicalValue struct {
	Kind         Kind     `json:"kind"`
	Scalar       string   `json:"scalar,omitempty"`
	Set          []string `json:"set,omitempty"`
	Pairs        []Pair   `json:"pairs,omitempty"`
	Unrecognized bool     `json:"unrecognized,omitempty"`
}

// Encode serializes the value for storage in the responses table.
func (v CanonicalValue) Encode() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored canonical value. Legacy rows that predate the
// tagged encoding decode as a plain scalar holding the raw text.
func Decode(s string) (CanonicalValue, error) {
	var v CanonicalValue
	if err := json.Unmarshal([]byte(s), &v); err != nil || v.Kind == "" {
		return CanonicalValue{Kind: KindScalar, Scalar: s}, nil
	}
	return v, nil
}
