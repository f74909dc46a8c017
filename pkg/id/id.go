package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	PrefixNotification = "ntf"
	PrefixWithdrawal   = "wd"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// Generate returns prefix_<ULID>. IDs from one process sort by creation time.
func Generate(prefix string) string {
	return GenerateAt(prefix, time.Now())
}

func GenerateAt(prefix string, t time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyMu.Unlock()
	return prefix + "_" + id.String()
}

// CorrelationID tags log lines that belong to one request for manual reconciliation.
func CorrelationID() string {
	return uuid.NewString()
}
