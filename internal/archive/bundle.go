package archive

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned when an export asks for encryption but no
// key pair has been set up.
var ErrNotConfigured = errors.New("encryption keys not configured")

// BundleSink receives finished export bundles. Implementations stream from
// r so bundles never have to fit in memory twice.
type BundleSink interface {
	// Put stores a bundle under name and returns where it ended up
	// (a file path or an object URL). size is the number of bytes in r.
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)

	// ValidateSetup checks that the destination is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// Encryptor seals export bundles. Encryption needs only the public key;
// decryption requires unlocking the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and stores the private half encrypted
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt writes the sealed form of r to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a Decrypter for the session, or an error when the
	// passphrase is wrong.
	Unlock(passphrase string) (Decrypter, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool

	// Ext is appended to the names of sealed bundles, e.g. ".age".
	Ext() string
}

// Decrypter opens bundles sealed by an Encryptor.
type Decrypter interface {
	Decrypt(r io.Reader, w io.Writer) error
}
