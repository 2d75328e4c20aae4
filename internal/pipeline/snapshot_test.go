package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore_DisabledCacheFindsNothing(t *testing.T) {
	// Nil store and nil-cache store both behave as a quiet miss.
	var s *SnapshotStore
	result, found, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, result)

	s = NewSnapshotStore(nil)
	result, found, err = s.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, result)
}
