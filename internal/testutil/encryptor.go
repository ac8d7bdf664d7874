package testutil

import (
	"chatvault/internal/archive"
	"chatvault/internal/encryption"
)

// NewTestEncryptor creates a deterministic, reversible encryptor for testing.
func NewTestEncryptor() archive.Encryptor {
	return encryption.NewTestEncryptor()
}
