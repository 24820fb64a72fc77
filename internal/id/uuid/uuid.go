// Package uuid provides the UUID implementation of archive.IDGenerator.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// Generator produces random UUIDv4 identifiers.
type Generator struct{}

// New returns a UUID generator.
func New() Generator {
	return Generator{}
}

// NewID returns a fresh UUID string.
func (Generator) NewID() (string, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
