package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutAddr(t *testing.T) {
	c, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, c, "empty addr disables caching")
}

func TestNew_UnreachableRedis(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: ping")
}
