package encryption

import (
	"bytes"
	"fmt"
	"io"

	"chatvault/internal/archive"
)

// testHeader is prepended by TestEncryptor so sealed output differs from
// the plaintext while staying deterministic.
var testHeader = []byte("CVENC\x00\x00\x00")

// TestEncryptor is a deterministic, reversible stand-in for tests. It
// prepends testHeader on Encrypt and strips it on Decrypt.
type TestEncryptor struct {
	setupCalled bool
}

var _ archive.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (archive.Decrypter, error) {
	return &TestDecrypter{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Ext() string { return ".enc" }

// TestDecrypter strips the header added by TestEncryptor.
type TestDecrypter struct{}

var _ archive.Decrypter = (*TestDecrypter)(nil)

func (d *TestDecrypter) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
