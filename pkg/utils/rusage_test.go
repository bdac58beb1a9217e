// pkg/utils/rusage_test.go

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRusage(t *testing.T) {
	ru := GetRusage()
	require.NotNil(t, ru)
	assert.GreaterOrEqual(t, ru.GetUtime(), 0.0)
	assert.GreaterOrEqual(t, ru.GetStime(), 0.0)
	// a running process always has a positive peak RSS
	assert.Greater(t, ru.GetMaxRSS(), int64(0))
}
