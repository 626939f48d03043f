package service

import (
	"crypto/rand"
	"errors"

	"github.com/eventgrid/eventgrid/internal/model"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken returns n characters drawn from the uppercase alphanumeric
// alphabet using crypto/rand, so codes never encode sequential ids.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("read random bytes: " + err.Error())
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

// newQRCode generates a ticket token in the QR_<12 chars> wire format.
func newQRCode() string {
	return "QR_" + randomToken(12)
}

// newTeamCode generates a join token a leader can share.
func newTeamCode() string {
	return "TEAM-" + randomToken(6)
}

// maxCodeAttempts bounds collision-regeneration loops. Collisions are
// detected by unique indexes, never assumed improbable.
const maxCodeAttempts = 5

// maxConflictRetries bounds the automatic retry of transient storage
// conflicts. Every conditional update here is idempotent under retry.
const maxConflictRetries = 3

func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, model.ErrStorageConflict) {
			return err
		}
	}
	return err
}
