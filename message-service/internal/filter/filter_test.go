package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLengthBounds(t *testing.T) {
	f := New(nil)

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "", ErrContentRequired},
		{"only spaces", "   \t ", ErrContentRequired},
		{"one rune", " a ", ErrContentTooShort},
		{"two runes", "hi", nil},
		{"multibyte counted as runes", "你好", nil},
		{"at max", strings.Repeat("ab", MaxContentLength/2), nil},
		{"over max", strings.Repeat("ab", MaxContentLength/2) + "c", ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Check(tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrInvalidContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.content), res.Content)
			assert.False(t, res.Flagged)
		})
	}
}

func TestCheckRejectsLongRuns(t *testing.T) {
	f := New(nil)

	_, err := f.Check("hello " + strings.Repeat("!", 7))
	assert.ErrorIs(t, err, ErrTooManyRepeats)

	_, err = f.Check("aAaAaAa")
	assert.ErrorIs(t, err, ErrTooManyRepeats)

	_, err = f.Check("wow " + strings.Repeat("!", 6))
	assert.NoError(t, err)

	_, err = f.Check("line\n\n\n\n\n\n\nline")
	assert.NoError(t, err)
}

func TestCheckMasksSensitiveWords(t *testing.T) {
	f := New([]string{"bad", " spam ", "", "a.b"})

	res, err := f.Check("this is BAD and Spam")
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, "this is *** and ***", res.Content)

	res, err = f.Check("axb stays")
	require.NoError(t, err)
	assert.False(t, res.Flagged, "words are matched literally")
	assert.Equal(t, "axb stays", res.Content)

	res, err = f.Check("a.b is masked")
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, "*** is masked", res.Content)
}

func TestSetWordsReplacesList(t *testing.T) {
	f := New([]string{"old"})
	f.SetWords([]string{"new"})

	assert.Equal(t, []string{"new"}, f.Words())

	res, err := f.Check("old new")
	require.NoError(t, err)
	assert.Equal(t, "old ***", res.Content)
}

func TestNormalizeSlug(t *testing.T) {
	assert.Equal(t, "general", NormalizeSlug(""))
	assert.Equal(t, "room-42", NormalizeSlug("  Room-42 "))
	assert.Equal(t, "dev_team", NormalizeSlug("dev_team"))
	assert.Equal(t, "general", NormalizeSlug("ab"))
	assert.Equal(t, "general", NormalizeSlug("has space"))
	assert.Equal(t, "general", NormalizeSlug(strings.Repeat("x", 65)))
}

func TestNormalizeType(t *testing.T) {
	for _, typ := range []string{"text", "image", "file", "system", "voice"} {
		assert.Equal(t, typ, NormalizeType(typ))
	}
	assert.Equal(t, "text", NormalizeType(""))
	assert.Equal(t, "text", NormalizeType("recall"))
	assert.Equal(t, "text", NormalizeType("video"))
}
