package utils

import (
	"github.com/google/uuid"
)

// GenerateSessionID returns a random uuid used as the session document id.
func GenerateSessionID() string {
	return uuid.New().String()
}
