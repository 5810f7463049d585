package middleware

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input validation and sanitization utilities

const (
	maxMessageLen  = 8000
	maxRewriteLen  = 50000
	maxStyleLen    = 64
	maxHistoryTurn = 50
)

// ValidateMessage bounds a chat message.
func ValidateMessage(msg string) error {
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return fmt.Errorf("message exceeds %d characters", maxMessageLen)
	}
	return nil
}

// ValidateHistory bounds the number of prior turns forwarded to the backend.
func ValidateHistory(turns int) error {
	if turns > maxHistoryTurn {
		return fmt.Errorf("history exceeds %d turns", maxHistoryTurn)
	}
	return nil
}

// ValidateRewrite bounds the text and style of a rewrite request.
func ValidateRewrite(text, style string) error {
	if utf8.RuneCountInString(text) > maxRewriteLen {
		return fmt.Errorf("text exceeds %d characters", maxRewriteLen)
	}
	if len(style) > maxStyleLen {
		return fmt.Errorf("style exceeds %d characters", maxStyleLen)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
