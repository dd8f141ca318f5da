package types

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for externally visible identifiers
const (
	UUID_PREFIX_SUBSCRIPTION   = "subs"
	UUID_PREFIX_PAYMENT_METHOD = "pm"
	UUID_PREFIX_TRANSACTION    = "txn"
	UUID_PREFIX_REQUEST        = "req"
)

// GenerateUUID returns a lexicographically sortable unique id
func GenerateUUID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

// GenerateUUIDWithPrefix returns a unique id with an entity prefix,
// e.g. subs_01HV3...
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
