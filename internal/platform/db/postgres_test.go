package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "host=localhost port=notaport", PoolOptions{MaxConns: 2})
	require.ErrorContains(t, err, "platform/db: parse config")
}
