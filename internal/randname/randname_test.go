package randname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_LengthAndHexEncoding(t *testing.T) {
	tok, err := Token(16)
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	for _, r := range tok {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestToken_DistinctAcrossCalls(t *testing.T) {
	a, err := Token(16)
	require.NoError(t, err)
	b, err := Token(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestContainerSuffix_EightHexCharacters(t *testing.T) {
	suffix := ContainerSuffix()
	assert.Len(t, suffix, 8)
}
