package mpesa

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUsesNairobiTime(t *testing.T) {
	utc := time.Date(2024, time.March, 9, 22, 4, 5, 0, time.UTC)
	assert.Equal(t, "20240310010405", Timestamp(utc))
}

func TestPassword(t *testing.T) {
	pw := Password("174379", "passkey", "20240310010405")

	decoded, err := base64.StdEncoding.DecodeString(pw)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20240310010405", string(decoded))
}

func TestPasswordChangesWithTimestamp(t *testing.T) {
	a := Password("174379", "passkey", Timestamp(time.Unix(1700000000, 0)))
	b := Password("174379", "passkey", Timestamp(time.Unix(1700000001, 0)))
	assert.NotEqual(t, a, b)
}
