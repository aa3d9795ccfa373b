package security

import (
	"strings"
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name        string
		key         []byte
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:        "nil key disables encryption",
			key:         nil,
			wantEnabled: false,
		},
		{
			name:        "empty key disables encryption",
			key:         []byte{},
			wantEnabled: false,
		},
		{
			name:    "short key rejected",
			key:     []byte("too-short"),
			wantErr: true,
		},
		{
			name:    "33 byte key rejected",
			key:     make([]byte, 33),
			wantErr: true,
		},
		{
			name:        "32 byte key accepted",
			key:         make([]byte, 32),
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc.IsEnabled() != tt.wantEnabled {
				t.Errorf("IsEnabled() = %v, want %v", enc.IsEnabled(), tt.wantEnabled)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptorFromSecret("test-secret")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret: %v", err)
	}

	plaintext := "dGhpcy1pcy1hLXZlcmlmaWVy.state-token"
	encrypted, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if encrypted == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := enc.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("round trip = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptProducesCookieSafeOutput(t *testing.T) {
	enc, err := NewEncryptorFromSecret("test-secret")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret: %v", err)
	}

	encrypted, err := enc.Encrypt("some verifier value with spaces; and = signs")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Cookie values must avoid separators and padding characters.
	for _, forbidden := range []string{";", ",", " ", "=", "+", "/"} {
		if strings.Contains(encrypted, forbidden) {
			t.Errorf("ciphertext contains forbidden character %q: %s", forbidden, encrypted)
		}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, err := NewEncryptorFromSecret("test-secret")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret: %v", err)
	}

	encrypted, err := enc.Encrypt("verifier")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := []byte(encrypted)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := enc.Decrypt(string(tampered)); err == nil {
		t.Error("expected error decrypting tampered ciphertext")
	}

	if _, err := enc.Decrypt("AAAA"); err == nil {
		t.Error("expected error decrypting truncated ciphertext")
	}
}

func TestDisabledEncryptorPassesThrough(t *testing.T) {
	enc, err := NewEncryptorFromSecret("")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret: %v", err)
	}
	if enc.IsEnabled() {
		t.Fatal("encryptor should be disabled with empty secret")
	}

	out, err := enc.Encrypt("plain")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if out != "plain" {
		t.Errorf("Encrypt passthrough = %q, want %q", out, "plain")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1, err := DeriveKey("secret-a")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := DeriveKey("secret-a")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if string(k1) != string(k2) {
		t.Error("same secret should derive the same key")
	}

	k3, err := DeriveKey("secret-b")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if string(k1) == string(k3) {
		t.Error("different secrets should derive different keys")
	}
	if len(k1) != 32 {
		t.Errorf("derived key length = %d, want 32", len(k1))
	}
}
