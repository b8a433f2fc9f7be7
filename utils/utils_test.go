package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDayBoundsInZone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	at := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC) // 21:00 on the 9th in UTC-5

	start := StartOfDay(at, zone)
	assert.Equal(t, time.Date(2024, 5, 9, 0, 0, 0, 0, zone), start)
	assert.Equal(t, time.Date(2024, 5, 9, 23, 59, 59, int(999*time.Millisecond), zone), EndOfDay(at, zone))
	assert.Equal(t, "2024-05-09", DayKey(at, zone))
	assert.Equal(t, "2024-05-10", DayKey(at, time.UTC))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-02-29", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "2024-2-29", "2023-02-29", "29/02/2024"} {
		_, err := ParseDay(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPassword("correct-horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("correct-horse", "not-a-hash"))
}

func TestGenerateSecureRandomString(t *testing.T) {
	a, err := GenerateSecureRandomString(16)
	require.NoError(t, err)
	b, err := GenerateSecureRandomString(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "0")
	assert.NotContains(t, a, "O")
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Empty(t, ExtractTokenFromHeader("Token abc"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}
