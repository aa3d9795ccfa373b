package valkey

import (
	"testing"

	"github.com/clonex/auth-gateway/security"
)

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing address")
	}
}

func TestRequestKey(t *testing.T) {
	s := &Store{prefix: DefaultKeyPrefix}
	if got := s.requestKey("abc"); got != "clonex:authreq:abc" {
		t.Errorf("requestKey() = %q, want clonex:authreq:abc", got)
	}

	s = &Store{prefix: "custom:"}
	if got := s.requestKey("abc"); got != "custom:authreq:abc" {
		t.Errorf("requestKey() = %q, want custom:authreq:abc", got)
	}
}

func TestSetEncryptor(t *testing.T) {
	s := &Store{}
	if s.getEncryptor() != nil {
		t.Error("encryptor should start unset")
	}

	enc, err := security.NewEncryptorFromSecret("storage-secret")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret() error = %v", err)
	}
	s.SetEncryptor(enc)
	if s.getEncryptor() != enc {
		t.Error("encryptor not stored")
	}
}

func TestSafeTruncate(t *testing.T) {
	if got := safeTruncate("abcdef", 4); got != "abcd" {
		t.Errorf("safeTruncate() = %q, want abcd", got)
	}
	if got := safeTruncate("ab", 4); got != "ab" {
		t.Errorf("safeTruncate() = %q, want ab", got)
	}
}
