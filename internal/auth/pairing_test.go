package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyKey(t *testing.T) {
	key, err := GeneratePairingKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(key) < 24 {
		t.Fatalf("pairing key too short: %q", key)
	}

	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("hash not in PHC format: %q", hash)
	}
	if strings.Contains(hash, key) {
		t.Fatal("hash contains the key")
	}

	ok, err := VerifyKey(key, hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("correct key rejected")
	}

	ok, err = VerifyKey("wrong-key", hash)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Fatal("wrong key accepted")
	}
}

func TestGeneratePairingKeyIsRandom(t *testing.T) {
	a, _ := GeneratePairingKey()
	b, _ := GeneratePairingKey()
	if a == b {
		t.Fatal("two generated keys are identical")
	}
}

func TestHashKeyIsSalted(t *testing.T) {
	h1, _ := HashKey("same-key")
	h2, _ := HashKey("same-key")
	if h1 == h2 {
		t.Fatal("two hashes of the same key are identical (missing salt?)")
	}
}

func TestVerifyKeyRejectsMalformedHashes(t *testing.T) {
	for _, bad := range []string{"", "plainhash", "$bcrypt$whatever$x$y$z"} {
		if _, err := VerifyKey("key", bad); err == nil {
			t.Fatalf("VerifyKey with hash %q did not error", bad)
		}
	}
}
