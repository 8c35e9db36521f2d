// Package filter validates and sanitizes user-submitted chat content.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-chat/pkg/events"
)

const (
	MinContentLength = 2
	MaxContentLength = 500
	// MaxRepeatedRunes is the longest allowed run of the same character.
	MaxRepeatedRunes = 6

	Mask = "***"
)

var (
	ErrInvalidContent  = errors.New("invalid content")
	ErrContentRequired = fmt.Errorf("%w: content required", ErrInvalidContent)
	ErrContentTooShort = fmt.Errorf("%w: content too short", ErrInvalidContent)
	ErrContentTooLong  = fmt.Errorf("%w: content too long", ErrInvalidContent)
	ErrTooManyRepeats  = fmt.Errorf("%w: too many repeated characters", ErrInvalidContent)
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-_]{3,64}$`)

var allowedTypes = map[string]bool{
	events.TypeText:   true,
	events.TypeImage:  true,
	events.TypeFile:   true,
	events.TypeSystem: true,
	events.TypeVoice:  true,
}

// Result is the outcome of a successful Check.
type Result struct {
	Content string
	// Flagged is set when at least one sensitive word was masked.
	Flagged bool
}

// Filter holds the current sensitive word list. It is safe for concurrent
// use; SetWords may be called while requests are being checked.
type Filter struct {
	mu       sync.RWMutex
	words    []string
	patterns []*regexp.Regexp
}

// New creates a filter masking words.
func New(words []string) *Filter {
	f := &Filter{}
	f.SetWords(words)
	return f
}

// SetWords replaces the sensitive word list.
func (f *Filter) SetWords(words []string) {
	normalized := NormalizeWords(words)
	patterns := make([]*regexp.Regexp, 0, len(normalized))
	for _, w := range normalized {
		patterns = append(patterns, regexp.MustCompile("(?i)"+regexp.QuoteMeta(w)))
	}

	f.mu.Lock()
	f.words = normalized
	f.patterns = patterns
	f.mu.Unlock()
}

// Words returns a copy of the sensitive word list.
func (f *Filter) Words() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.words...)
}

// Check validates content and masks sensitive words.
func (f *Filter) Check(content string) (Result, error) {
	trimmed := strings.TrimSpace(content)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return Result{}, ErrContentRequired
	case n < MinContentLength:
		return Result{}, ErrContentTooShort
	case n > MaxContentLength:
		return Result{}, ErrContentTooLong
	case hasLongRun(trimmed, MaxRepeatedRunes+1):
		return Result{}, ErrTooManyRepeats
	}

	f.mu.RLock()
	patterns := f.patterns
	f.mu.RUnlock()

	res := Result{Content: trimmed}
	for _, p := range patterns {
		if p.MatchString(res.Content) {
			res.Flagged = true
			res.Content = p.ReplaceAllLiteralString(res.Content, Mask)
		}
	}
	return res, nil
}

// hasLongRun reports whether s holds limit or more consecutive copies of
// one character, compared case-insensitively. Line breaks never count.
func hasLongRun(s string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == '\n' || r == '\r' {
			run = 0
			continue
		}
		r = unicode.ToLower(r)
		if run > 0 && r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= limit {
			return true
		}
	}
	return false
}

// NormalizeWords trims words and drops empty entries.
func NormalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// NormalizeSlug lowercases a conversation slug, falling back to the public
// conversation when it is empty or not a valid slug.
func NormalizeSlug(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	if !slugPattern.MatchString(slug) {
		return events.DefaultConversation
	}
	return slug
}

// NormalizeType returns t when it is a postable message type and text
// otherwise.
func NormalizeType(t string) string {
	if allowedTypes[t] {
		return t
	}
	return events.TypeText
}
