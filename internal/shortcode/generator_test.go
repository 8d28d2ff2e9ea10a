package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator()

	t.Run("length and alphabet", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			code, err := g.Generate()
			require.NoError(t, err)

			assert.Len(t, code, Length)
			for _, r := range code {
				assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected symbol %q in %q", r, code)
			}
		}
	})

	t.Run("no repetition", func(t *testing.T) {
		seen := make(map[string]struct{}, 10000)

		for i := 0; i < 10000; i++ {
			code, err := g.Generate()
			require.NoError(t, err)

			_, dup := seen[code]
			require.False(t, dup, "duplicate code %q after %d draws", code, i)
			seen[code] = struct{}{}
		}
	})

	t.Run("invalid length", func(t *testing.T) {
		bad := &Generator{length: -1}

		code, err := bad.Generate()

		assert.Error(t, err)
		assert.Empty(t, code)
	})
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 64)
}
