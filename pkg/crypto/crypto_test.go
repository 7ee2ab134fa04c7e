package crypto

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewCipherKeyFormats(t *testing.T) {
	if _, err := NewCipher(testKey); err != nil {
		t.Errorf("raw 32-byte key rejected: %v", err)
	}
	if _, err := NewCipher("30313233343536373839616263646566" + "30313233343536373839616263646566"); err != nil {
		t.Errorf("hex key rejected: %v", err)
	}
	if _, err := NewCipher("too-short"); err == nil {
		t.Error("short key accepted")
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	cipher, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	token := "ya29.a0AfB_example_access_token"
	sealed, err := cipher.Encrypt(token)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if strings.Contains(sealed, token) {
		t.Error("ciphertext leaks the plaintext")
	}

	opened, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if opened != token {
		t.Errorf("roundtrip mismatch: %q", opened)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	cipher, _ := NewCipher(testKey)

	if _, err := cipher.Decrypt("not base64 !!!"); err == nil {
		t.Error("malformed base64 accepted")
	}
	if _, err := cipher.Decrypt("c2hvcnQ="); err == nil {
		t.Error("truncated ciphertext accepted")
	}

	other, _ := NewCipher("ffffffffffffffffffffffffffffffff")
	sealed, _ := cipher.Encrypt("secret")
	if _, err := other.Decrypt(sealed); err == nil {
		t.Error("decryption with a different key accepted")
	}
}

func TestProperty_RoundtripAnyToken(t *testing.T) {
	cipher, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypt then decrypt is identity", prop.ForAll(
		func(token string) bool {
			sealed, err := cipher.Encrypt(token)
			if err != nil {
				return false
			}
			opened, err := cipher.Decrypt(sealed)
			return err == nil && opened == token
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
