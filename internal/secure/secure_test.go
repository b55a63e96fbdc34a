package secure_test

import (
	"errors"
	"testing"

	"github.com/atinyakov/LinkKeeper/internal/secure"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ct, err := secure.Encrypt("hunter2", "sk-live-abc")
	if err != nil {
		t.Fatalf("Encrypt error = %v", err)
	}
	if ct == "" || ct == "sk-live-abc" {
		t.Fatalf("suspicious ciphertext %q", ct)
	}

	plain, err := secure.Decrypt("hunter2", ct)
	if err != nil {
		t.Fatalf("Decrypt error = %v", err)
	}
	if plain != "sk-live-abc" {
		t.Fatalf("Decrypt = %q; want sk-live-abc", plain)
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	ct, err := secure.Encrypt("hunter2", "secret")
	if err != nil {
		t.Fatalf("Encrypt error = %v", err)
	}
	if _, err := secure.Decrypt("wrong", ct); !errors.Is(err, secure.ErrDecrypt) {
		t.Fatalf("Decrypt error = %v; want ErrDecrypt", err)
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	for _, ct := range []string{"", "not base64 !!!", "c2hvcnQ="} {
		if _, err := secure.Decrypt("pw", ct); !errors.Is(err, secure.ErrDecrypt) {
			t.Fatalf("Decrypt(%q) error = %v; want ErrDecrypt", ct, err)
		}
	}
}

func TestEncrypt_FreshRandomnessPerCall(t *testing.T) {
	a, err := secure.Encrypt("pw", "same input")
	if err != nil {
		t.Fatalf("Encrypt error = %v", err)
	}
	b, err := secure.Encrypt("pw", "same input")
	if err != nil {
		t.Fatalf("Encrypt error = %v", err)
	}
	if a == b {
		t.Fatalf("two encryptions of identical input are byte-identical")
	}
}

func TestEncryptField_EmptyInputs(t *testing.T) {
	calls := 0
	seal := func(password, plaintext string) (string, error) {
		calls++
		return "ct", nil
	}

	var cache secure.FieldCache
	for _, tc := range []struct{ password, plaintext string }{
		{"", "secret"},
		{"pw", ""},
		{"", ""},
	} {
		got, err := secure.EncryptField(seal, tc.password, tc.plaintext, &cache)
		if err != nil {
			t.Fatalf("EncryptField(%q, %q) error = %v", tc.password, tc.plaintext, err)
		}
		if got != "" {
			t.Fatalf("EncryptField(%q, %q) = %q; want empty", tc.password, tc.plaintext, got)
		}
	}
	if calls != 0 {
		t.Fatalf("seal invoked %d times for empty inputs", calls)
	}
}

func TestEncryptField_CacheHitSkipsSeal(t *testing.T) {
	calls := 0
	seal := func(password, plaintext string) (string, error) {
		calls++
		return "ct-1", nil
	}

	var cache secure.FieldCache
	first, err := secure.EncryptField(seal, "pw", "secret", &cache)
	if err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}
	second, err := secure.EncryptField(seal, "pw", "secret", &cache)
	if err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}

	if calls != 1 {
		t.Fatalf("seal invoked %d times; want 1", calls)
	}
	if first != second {
		t.Fatalf("cache hit returned %q; want %q", second, first)
	}
}

func TestEncryptField_CacheMissOnChangedInput(t *testing.T) {
	calls := 0
	seal := func(password, plaintext string) (string, error) {
		calls++
		return plaintext + "-sealed", nil
	}

	var cache secure.FieldCache
	if _, err := secure.EncryptField(seal, "pw", "one", &cache); err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}
	if _, err := secure.EncryptField(seal, "pw", "two", &cache); err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}
	if _, err := secure.EncryptField(seal, "other", "two", &cache); err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("seal invoked %d times; want 3", calls)
	}
}

func TestEncryptField_FailureLeavesCacheUntouched(t *testing.T) {
	sealErr := errors.New("rng starved")
	failing := func(password, plaintext string) (string, error) {
		return "", sealErr
	}
	working := func(password, plaintext string) (string, error) {
		return "good", nil
	}

	var cache secure.FieldCache
	if _, err := secure.EncryptField(working, "pw", "v1", &cache); err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}

	if _, err := secure.EncryptField(failing, "pw", "v2", &cache); !errors.Is(err, sealErr) {
		t.Fatalf("EncryptField error = %v; want %v", err, sealErr)
	}

	// The v1 entry must still be served from cache.
	calls := 0
	counting := func(password, plaintext string) (string, error) {
		calls++
		return "again", nil
	}
	got, err := secure.EncryptField(counting, "pw", "v1", &cache)
	if err != nil {
		t.Fatalf("EncryptField error = %v", err)
	}
	if calls != 0 || got != "good" {
		t.Fatalf("cache corrupted by failed seal: calls=%d got=%q", calls, got)
	}
}
