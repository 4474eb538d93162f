package controllers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := randomCode(codeLength)
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(codeCharset, r),
				"code %q contains character outside the charset", code)
		}
		seen[code] = true
	}
	// 32^6 possibilities; 200 draws colliding down to a handful would
	// mean the generator is broken.
	require.Greater(t, len(seen), 190)
}

func TestCodeCharsetExcludesAmbiguousCharacters(t *testing.T) {
	for _, bad := range []string{"0", "O", "1", "I", "L"} {
		require.NotContains(t, codeCharset, bad)
	}
}

func TestEmailPattern(t *testing.T) {
	valid := []string{"a@b.co", "mom@example.com", "first.last+tag@sub.domain.org"}
	for _, e := range valid {
		require.True(t, emailPattern.MatchString(e), "expected %q to be valid", e)
	}
	invalid := []string{"", "plain", "no@tld", "two@@example.com", "sp ace@example.com"}
	for _, e := range invalid {
		require.False(t, emailPattern.MatchString(e), "expected %q to be invalid", e)
	}
}
