package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	from, to, err := dateRange("", "")
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	from, to, err = dateRange("2024-01-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), to)

	_, _, err = dateRange("2024-03-31", "2024-01-01")
	assert.Error(t, err)
	_, _, err = dateRange("01/02/2024", "")
	assert.Error(t, err)
}
