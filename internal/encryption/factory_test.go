package encryption

import (
	"testing"

	"chatvault/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		wantExt string
		wantNil bool
		wantErr bool
	}{
		{name: "default is none", typ: "", wantNil: true},
		{name: "none", typ: "none", wantNil: true},
		{name: "age", typ: "age", wantExt: ".age"},
		{name: "test", typ: "test", wantExt: ".enc"},
		{name: "unknown", typ: "rot13", wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("NewEncryptorFromConfig() returned nil = %v, wantNil %v", got == nil, tt.wantNil)
			}
			if got != nil && got.Ext() != tt.wantExt {
				t.Errorf("Ext() = %q, want %q", got.Ext(), tt.wantExt)
			}
		})
	}
}
