package ecocrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// EncryptCBC AES-CBC-encrypts a 16-byte-aligned buffer under key/iv. A
// fresh cipher.BlockMode is constructed for every call so CBC chaining
// never persists across calls — the IV supplied here is always the one
// stored for the session, never a residual running state (§4.1).
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	if len(plaintext)%16 != 0 {
		return nil, &CryptoError{Op: "encrypt", Cause: fmt.Errorf("plaintext length %d not a multiple of 16", len(plaintext))}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "encrypt", Cause: err}
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// DecryptCBC is the inverse of EncryptCBC.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%16 != 0 {
		return nil, &CryptoError{Op: "decrypt", Cause: fmt.Errorf("ciphertext length %d not a multiple of 16", len(ciphertext))}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "decrypt", Cause: err}
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}
