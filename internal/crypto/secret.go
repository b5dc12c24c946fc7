package crypto

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// EncryptedString is a string column that encrypts on write and decrypts on
// read. It is the single point secrets cross the process boundary through,
// so the marker/fallback rules live here rather than in every caller.
type EncryptedString string

// Value encrypts for storage. Empty strings and values that already carry
// the marker (round-tripped through a partial update) pass through unchanged
// so a record can be saved twice without nesting encryption.
func (s EncryptedString) Value() (driver.Value, error) {
	raw := string(s)
	if raw == "" || strings.HasPrefix(raw, EncryptedPrefix) {
		return raw, nil
	}
	encrypted, err := EncryptString(raw)
	if err != nil {
		return nil, err
	}
	return encrypted, nil
}

// Scan decrypts a stored value. The policy is never-lose-data: if decryption
// fails the stored text is kept verbatim, so a wrong-machine ciphertext stays
// recoverable and genuine plaintext from before encryption keeps working.
func (s *EncryptedString) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("crypto: cannot scan %T into EncryptedString", value)
	}

	if raw == "" {
		*s = ""
		return nil
	}

	if plain, err := DecryptString(raw); err == nil {
		*s = EncryptedString(plain)
		return nil
	}
	*s = EncryptedString(raw)
	return nil
}

// String exposes the plaintext; masking for display is the caller's job.
func (s EncryptedString) String() string { return string(s) }
