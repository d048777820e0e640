package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNoteLength caps free-text fields stored on episodes.
const MaxNoteLength = 2000

// SanitizationResult contains the sanitized text and any warnings
type SanitizationResult struct {
	Text     string
	Warnings []string
	Modified bool
}

var (
	// Control characters (except common whitespace)
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	markupPattern = regexp.MustCompile(`<[^>]*>`)

	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// SanitizeFreeText cleans supervisor notes and alert details before storage.
// Control characters and markup tags are removed and the text is capped at maxLen runes.
func SanitizeFreeText(text string, maxLen int) *SanitizationResult {
	result := &SanitizationResult{Text: text, Warnings: []string{}}
	if text == "" {
		return result
	}

	if controlCharPattern.MatchString(result.Text) {
		result.Text = controlCharPattern.ReplaceAllString(result.Text, "")
		result.Warnings = append(result.Warnings, "Removed control characters")
		result.Modified = true
	}

	if markupPattern.MatchString(result.Text) {
		result.Text = markupPattern.ReplaceAllString(result.Text, "")
		result.Warnings = append(result.Warnings, "Removed markup tags")
		result.Modified = true
	}

	trimmed := strings.TrimSpace(result.Text)
	if trimmed != result.Text {
		result.Text = trimmed
		result.Modified = true
	}

	if maxLen > 0 && utf8.RuneCountInString(result.Text) > maxLen {
		result.Text = string([]rune(result.Text)[:maxLen])
		result.Warnings = append(result.Warnings, fmt.Sprintf("Text truncated to %d characters", maxLen))
		result.Modified = true
	}

	return result
}

// SnakeCase converts a free-form label to lower snake_case, e.g. "Chest Pain!" -> "chest_pain".
func SnakeCase(s string) string {
	s = nonAlnumPattern.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

// ContainsAnyFold reports whether text contains any of the keywords, ignoring case.
func ContainsAnyFold(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}
