package vaultcrypto

import (
	"bytes"
	"testing"
)

func TestDeriveMasterKey(t *testing.T) {
	tests := []struct {
		name        string
		storageCode string
		password    string
		wantErr     bool
	}{
		{name: "valid hex code", storageCode: "aabbccdd", password: "hunter2", wantErr: false},
		{name: "empty code", storageCode: "", password: "hunter2", wantErr: true},
		{name: "non-hex code", storageCode: "not-hex!", password: "hunter2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveMasterKey(tt.storageCode, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveMasterKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(key) != MasterKeyLen {
				t.Errorf("key length = %d, want %d", len(key), MasterKeyLen)
			}
		})
	}
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	k1, err := DeriveMasterKey("aabbccdd", "hunter2")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	k2, err := DeriveMasterKey("aabbccdd", "hunter2")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("identical credentials produced different master keys")
	}

	k3, err := DeriveMasterKey("aabbccdd", "different")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Error("different passwords produced identical master keys")
	}
}

func TestGenerateStorageCode(t *testing.T) {
	a, err := GenerateStorageCode()
	if err != nil {
		t.Fatalf("GenerateStorageCode() error = %v", err)
	}
	b, err := GenerateStorageCode()
	if err != nil {
		t.Fatalf("GenerateStorageCode() error = %v", err)
	}
	if a == b {
		t.Error("two calls produced the same storage code")
	}
	if _, err := DeriveMasterKey(a, "x"); err != nil {
		t.Errorf("generated storage code is not valid hex: %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, MasterKeyLen)
	locator := []byte("locator-one")
	plain := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, err := Encrypt(key, locator, plain)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	got, err := Decrypt(key, locator, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Decrypt() = %q, want %q", got, plain)
	}
}

func TestEncrypt_DifferentLocatorsUnrelatedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, MasterKeyLen)
	plain := []byte("same plaintext, different locators")

	c1, err := Encrypt(key, []byte("locator-a"), plain)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	c2, err := Encrypt(key, []byte("locator-b"), plain)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := Decrypt(key, []byte("locator-a"), c2); err == nil {
		t.Error("ciphertext for locator-b decrypted successfully under locator-a's key")
	}
	if bytes.Equal(c1, c2) {
		t.Error("identical plaintext at different locators produced identical ciphertext")
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x99}, MasterKeyLen)
	locator := []byte("locator-tamper")
	ciphertext, err := Encrypt(key, locator, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	tampered := append([]byte{}, ciphertext...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := Decrypt(key, locator, tampered); err == nil {
		t.Error("Decrypt() succeeded on tampered ciphertext")
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	c := ContentHash([]byte("world"))

	if !bytes.Equal(a, b) {
		t.Error("identical content produced different hashes")
	}
	if bytes.Equal(a, c) {
		t.Error("different content produced identical hashes")
	}
}
