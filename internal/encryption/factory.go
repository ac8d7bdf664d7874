package encryption

import (
	"fmt"

	"chatvault/internal/archive"
	"chatvault/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) disables bundle encryption and returns nil.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (archive.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
