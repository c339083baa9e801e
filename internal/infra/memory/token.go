package memory

import (
	"crypto/rand"
	"encoding/hex"

	"quizhost-service/internal/domain"
)

// NewTokenSource returns a crypto/rand-backed capability token generator.
func NewTokenSource() domain.TokenSource {
	return func() string {
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			// Tokens gate pack transfer and team sessions; a partially
			// filled buffer must never become one.
			panic("token source: " + err.Error())
		}
		return hex.EncodeToString(b)
	}
}
