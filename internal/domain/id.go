package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string. Scan IDs sort by start time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
