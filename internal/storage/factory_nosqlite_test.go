//go:build !sqlite

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStoreSQLiteUnavailableWithoutTag(t *testing.T) {
	_, err := NewStore("sqlite", "evonas.db")
	require.ErrorContains(t, err, "-tags sqlite")
}
