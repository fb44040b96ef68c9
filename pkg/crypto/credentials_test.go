package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-passphrase")
	if err != nil {
		t.Fatalf("NewCredentialEncryptor() error = %v", err)
	}

	plaintext := "AIzaSyD4bGhF1234567890abcdefghijklmn"

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("Encrypt() returned plaintext unchanged")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	enc, _ := NewCredentialEncryptor("test-passphrase")

	c1, _ := enc.Encrypt("same value")
	c2, _ := enc.Encrypt("same value")
	if c1 == c2 {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, _ := NewCredentialEncryptor("key-one")
	enc2, _ := NewCredentialEncryptor("key-two")

	ciphertext, _ := enc1.Encrypt("secret")
	_, err := enc2.Decrypt(ciphertext)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	enc, _ := NewCredentialEncryptor("test-passphrase")

	for _, input := range []string{"not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := enc.Decrypt(input); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("Decrypt(%q) error = %v, want ErrDecryptionFailed", input, err)
		}
	}
}

func TestEmptyValuesPassThrough(t *testing.T) {
	enc, _ := NewCredentialEncryptor("test-passphrase")

	if got, err := enc.Encrypt(""); got != "" || err != nil {
		t.Errorf("Encrypt(\"\") = %q, %v; want empty, nil", got, err)
	}
	if got, err := enc.Decrypt(""); got != "" || err != nil {
		t.Errorf("Decrypt(\"\") = %q, %v; want empty, nil", got, err)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	if _, err := NewCredentialEncryptor(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("NewCredentialEncryptor(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestBase64KeyAccepted(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	enc, err := NewCredentialEncryptor(key)
	if err != nil {
		t.Fatalf("NewCredentialEncryptor() with base64 key error = %v", err)
	}

	ciphertext, _ := enc.Encrypt("value")
	got, err := enc.Decrypt(ciphertext)
	if err != nil || got != "value" {
		t.Errorf("round trip with base64 key = %q, %v", got, err)
	}
}
