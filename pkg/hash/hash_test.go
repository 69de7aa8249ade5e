package hash

import (
	"strings"
	"testing"
)

// testParams keeps the work factor low so the suite stays fast.
func testParams() Params {
	return Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

func TestHashAndVerify(t *testing.T) {
	h := New(testParams())

	digest, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Errorf("digest = %q, want $argon2id$ prefix", digest)
	}
	if !h.Verify("correct horse battery staple", digest) {
		t.Error("Verify should accept the original secret")
	}
	if h.Verify("wrong password", digest) {
		t.Error("Verify should reject a different secret")
	}
}

func TestHash_Randomized(t *testing.T) {
	h := New(testParams())

	a, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if a == b {
		t.Error("two hashes of the same secret should differ (random salt)")
	}
	if !h.Verify("secret", a) || !h.Verify("secret", b) {
		t.Error("both digests should verify")
	}
}

func TestVerify_WorkFactorChange(t *testing.T) {
	// Digests produced under old parameters must keep verifying after the
	// configured work factor changes.
	old := New(Params{Time: 2, Memory: 2048, Threads: 2, KeyLen: 32, SaltLen: 16})
	digest, err := old.Hash("secret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !New(testParams()).Verify("secret", digest) {
		t.Error("digest from a different work factor should still verify")
	}
}

func TestVerify_Malformed(t *testing.T) {
	h := New(testParams())

	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"not a digest", "plaintext"},
		{"wrong algorithm", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"truncated", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA"},
		{"bad base64", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA"},
		{"bad version", "$argon2id$v=7$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h.Verify("secret", tt.digest) {
				t.Errorf("Verify(%q) should be false", tt.digest)
			}
		})
	}
}
