package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	e, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	plaintext := `{"sp_dc":"some-cookie"}`
	sealed, err := e.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(sealed, "some-cookie") {
		t.Fatal("ciphertext contains plaintext")
	}

	got, err := e.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestEncryptionIsNondeterministic(t *testing.T) {
	key, _ := GenerateKey()
	e, _ := NewEncryptor(key)

	a, _ := e.Encrypt("same input")
	b, _ := e.Encrypt("same input")
	if a == b {
		t.Fatal("two encryptions produced identical ciphertext (nonce reuse?)")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key, _ := GenerateKey()
	e, _ := NewEncryptor(key)

	sealed, _ := e.Encrypt("payload")
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := e.Decrypt(tampered); err == nil {
		t.Fatal("tampered ciphertext accepted")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	key, _ := GenerateKey()
	e, _ := NewEncryptor(key)

	for _, bad := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := e.Decrypt(bad); err == nil {
			t.Fatalf("decrypt(%q) succeeded", bad)
		}
	}
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	if _, err := NewEncryptor("not base64 !!!"); err == nil {
		t.Fatal("invalid base64 key accepted")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewEncryptor(short); err == nil {
		t.Fatal("short key accepted")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()
	e1, _ := NewEncryptor(key1)
	e2, _ := NewEncryptor(key2)

	sealed, _ := e1.Encrypt("secret")
	if _, err := e2.Decrypt(sealed); err == nil {
		t.Fatal("wrong key decrypted ciphertext")
	}
}
