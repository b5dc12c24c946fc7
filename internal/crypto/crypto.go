// Package crypto encrypts account secrets at rest. The key is derived from
// the machine ID, so a copied database is useless on another device; the
// trade-off is that secrets do not survive a machine-ID change either, which
// is why decryption failures fall back to returning the stored text instead
// of discarding it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/denisbrodbeck/machineid"
)

// EncryptedPrefix marks current-generation ciphertext. Values without it are
// either legacy unmarked ciphertext or plaintext that predates encryption.
const EncryptedPrefix = "ag_enc_"

// Fixed nonce: identical plaintext always encrypts to identical ciphertext
// on the same machine, which keeps re-serialization idempotent. Accepted
// trade against pattern analysis of the stored secrets.
var fixedNonce = []byte("antigravsalt")

var (
	keyOnce sync.Once
	key     [32]byte
)

// encryptionKey derives the AES-256 key once per process from the device ID.
// Machines without a readable ID all share the "default" key, matching the
// behaviour of earlier releases.
func encryptionKey() []byte {
	keyOnce.Do(func() {
		id, err := machineid.ID()
		if err != nil {
			id = "default"
		}
		key = sha256.Sum256([]byte(id))
	})
	return key[:]
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(encryptionKey())
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: init gcm: %w", err)
	}
	return gcm, nil
}

// EncryptString encrypts plain and prepends the versioned marker.
func EncryptString(plain string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, fixedNonce, []byte(plain), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// decryptRaw decrypts bare base64 ciphertext without any marker handling.
func decryptRaw(encoded string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("crypto: base64 decode: %w", err)
	}
	plain, err := gcm.Open(nil, fixedNonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: %w", err)
	}
	return string(plain), nil
}

// DecryptString decrypts text produced by EncryptString or by the legacy
// unmarked format. It returns an error when the marker is present but the
// remainder does not decrypt; interpretation of unmarked input is left to
// the caller (see EncryptedString.Scan for the never-lose-data policy).
func DecryptString(text string) (string, error) {
	if strings.HasPrefix(text, EncryptedPrefix) {
		return decryptRaw(strings.TrimPrefix(text, EncryptedPrefix))
	}
	return decryptRaw(text)
}
