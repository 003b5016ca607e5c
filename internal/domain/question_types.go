// Package domain defines the persistence models for the survey backend.
// This file declares the fixed question-type taxonomy and the shape
// classification used by the normalizer, aggregation, and export layers.
package domain

// Question type tags. The taxonomy is closed: unrecognized tags are carried
// through permissively (see the answers package) but are never aggregated as
// structured data.
const (
	TypeSingleChoice   = "single_choice"
	TypeMultiChoice    = "multi_choice"
	TypeDropdown       = "dropdown"
	TypeRatingScale    = "rating_scale"
	TypeMatrixRadio    = "matrix_radio"
	TypeMatrixCheckbox = "matrix_checkbox"
	TypeShortText      = "short_text"
	TypeLongText       = "long_text"
	TypeBoolean        = "boolean"
)

// IsChoiceType reports whether the tag aggregates as a frequency distribution
// over option labels. Multi-choice belongs here too: each selected label
// contributes one count.
func IsChoiceType(typeTag string) bool {
	switch typeTag {
	case TypeSingleChoice, TypeMultiChoice, TypeDropdown, TypeRatingScale, TypeBoolean:
		return true
	}
	return false
}

// IsMultiValueType reports whether the tag accepts several scalar selections
// at once (canonical shape: set of scalars).
func IsMultiValueType(typeTag string) bool {
	return typeTag == TypeMultiChoice
}

// IsMatrixType reports whether the tag carries row/column pair answers
// (canonical shape: set of pairs).
func IsMatrixType(typeTag string) bool {
	return typeTag == TypeMatrixRadio || typeTag == TypeMatrixCheckbox
}

// IsTextType reports whether the tag aggregates as a verbatim listing of
// non-empty answers.
func IsTextType(typeTag string) bool {
	return typeTag == TypeShortText || typeTag == TypeLongText
}

// KnownType reports whether the tag belongs to the fixed taxonomy.
func KnownType(typeTag string) bool {
	return IsChoiceType(typeTag) || IsMatrixType(typeTag) || IsTextType(typeTag)
}
