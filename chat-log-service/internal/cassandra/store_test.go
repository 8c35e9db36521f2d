package cassandra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataCodec(t *testing.T) {
	s, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Nil(t, decodeMetadata(s))

	s, err = encodeMetadata(map[string]any{"url": "https://cdn.example/a.png"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "https://cdn.example/a.png"}, decodeMetadata(s))

	assert.Nil(t, decodeMetadata("{broken"))
}

func TestParseConsistency(t *testing.T) {
	assert.Equal(t, "LOCAL_ONE", parseConsistency("local_one").String())
	assert.Equal(t, "QUORUM", parseConsistency("QUORUM").String())
	assert.Equal(t, "LOCAL_QUORUM", parseConsistency("bogus").String())
}
