// Package budget measures free-text study input against the character limit.
package budget

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Limit is the maximum number of characters accepted as free text.
const Limit = 300

var (
	// ErrNoInput is returned when neither text nor files were provided.
	ErrNoInput = errors.New("enter some text or upload a file")
	// ErrTextTooLong is returned when free text exceeds Limit characters.
	ErrTextTooLong = errors.New("text cannot exceed 300 characters")
)

// Tier is the visual severity of the current text length.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// Measurement is the result of observing one text value.
type Measurement struct {
	Length    int  `json:"length"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Tier      Tier `json:"tier"`
}

// Length counts characters as code points.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// Observe measures text for the counter display. Remaining goes negative once
// the limit is passed; enforcement only happens at submission.
func Observe(text string) Measurement {
	n := Length(text)
	tier := TierNormal
	switch {
	case n*10 > Limit*9:
		tier = TierCritical
	case n*10 > Limit*7:
		tier = TierWarning
	}

	return Measurement{
		Length:    n,
		Limit:     Limit,
		Remaining: Limit - n,
		Tier:      tier,
	}
}

// ValidateForSubmission checks text (trimmed) together with the number of
// selected files. Text length is checked even when files are present because
// non-empty text wins over files.
func ValidateForSubmission(text string, selectedFiles int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && selectedFiles == 0 {
		return ErrNoInput
	}
	if Length(trimmed) > Limit {
		return ErrTextTooLong
	}
	return nil
}
