package answers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// PairLookup resolves a pre-resolved pair token ("<row>:<col>") back into
// its row and column identities, scoped to one question. Implemented by
// identity.QuestionRef; may be nil when the question has no matrix shape.
type PairLookup interface {
	SplitPair(token string) (rowID, colID string, ok bool)
	HasRow(id string) bool
	HasColumn(id string) bool
}

// Normalize converts a raw submitted value into its canonical shape for the
// given question type. It never fails: malformed shapes are coerced
// best-effort, and an unrecognized type tag yields a flagged scalar
// passthrough, so a schema mismatch can never block a submission.
//
// Coercion rules per shape:
//   - Scalar types: an array collapses to its first element (empty array to
//     the empty string); anything else is stringified as-is.
//   - Set types: a scalar is wrapped as a one-element set; array elements
//     are stringified individually.
//   - Pair types: items may be objects carrying explicit row/column
//     identities, or pre-resolved pair tokens which are decoded via pairs.
//     Unresolvable items are dropped, not fatal.
func Normalize(typeTag string, raw any, pairs PairLookup) CanonicalValue {
	switch {
	case domain.IsMatrixType(typeTag):
		return CanonicalValue{Kind: KindPairs, Pairs: coercePairs(raw, pairs)}
	case domain.IsMultiValueType(typeTag):
		return CanonicalValue{Kind: KindSet, Set: coerceSet(raw)}
	case domain.IsChoiceType(typeTag) || domain.IsTextType(typeTag):
		return CanonicalValue{Kind: KindScalar, Scalar: coerceScalar(raw)}
	default:
		return CanonicalValue{Kind: KindScalar, Scalar: passthrough(raw), Unrecognized: true}
	}
}

// Display inverse-maps a canonical value to the shape a rendered page
// consumes when overlaying an existing answer: a string for scalars, a
// string slice for sets, and a slice of pair tokens for matrix answers.
func Display(v CanonicalValue) any {
	switch v.Kind {
	case KindSet:
		if v.Set == nil {
			return []string{}
		}
		return v.Set
	case KindPairs:
		tokens := make([]string, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			tokens = append(tokens, p.Row+":"+p.Column)
		}
		return tokens
	default:
		return v.Scalar
	}
}

func coerceScalar(raw any) string {
	if arr, ok := raw.([]any); ok {
		if len(arr) == 0 {
			return ""
		}
		return stringify(arr[0])
	}
	if arr, ok := raw.([]string); ok {
		if len(arr) == 0 {
			return ""
		}
		return arr[0]
	}
	return stringify(raw)
}

func coerceSet(raw any) []string {
	switch t := raw.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return []string{stringify(t)}
	}
}

func coercePairs(raw any, pairs PairLookup) []Pair {
	items, ok := raw.([]any)
	if !ok {
		// A lone item (object or token) is treated as a one-element list.
		if raw == nil {
			return []Pair{}
		}
		items = []any{raw}
	}
	out := make([]Pair, 0, len(items))
	for _, item := range items {
		if p, ok := decodePair(item, pairs); ok {
			out = append(out, p)
		}
	}
	return out
}

// decodePair accepts either an explicit {"row": ..., "column": ...} object or
// a pre-resolved pair token string. Explicit pairs are validated against the
// lookup when one is available; tokens require the lookup to decode at all.
func decodePair(item any, pairs PairLookup) (Pair, bool) {
	switch t := item.(type) {
	case map[string]any:
		row := stringify(t["row"])
		col := stringify(t["column"])
		if row == "" || col == "" {
			return Pair{}, false
		}
		if pairs != nil && (!pairs.HasRow(row) || !pairs.HasColumn(col)) {
			return Pair{}, false
		}
		return Pair{Row: row, Column: col}, true
	case Pair:
		return t, t.Row != "" && t.Column != ""
	case string:
		if pairs == nil {
			return Pair{}, false
		}
		row, col, ok := pairs.SplitPair(t)
		if !ok {
			return Pair{}, false
		}
		return Pair{Row: row, Column: col}, true
	default:
		return Pair{}, false
	}
}

// stringify renders a JSON-decoded scalar as text. Numbers avoid the float64
// exponent form so "3" round-trips as "3", not "3e+00".
func stringify(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// passthrough preserves an arbitrary raw value as text for permissive
// downstream handling. Non-scalar values keep their JSON form.
func passthrough(raw any) string {
	switch raw.(type) {
	case nil:
		return ""
	case string, bool, float64, json.Number:
		return stringify(raw)
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return fmt.Sprint(raw)
		}
		return string(b)
	}
}
