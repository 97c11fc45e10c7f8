package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"elg-gateway/gwerr"
)

const (
	// AESKeySize is the required AES-128 key length.
	AESKeySize = 16

	// AESBlockSize is the AES-CBC block size every ciphertext length
	// must be a positive multiple of.
	AESBlockSize = 16
)

var (
	// ErrCrypto covers key/IV length violations, non-block-aligned
	// ciphertext, and any underlying cipher failure.
	ErrCrypto = errors.New("crypto error")
)

// decrypt runs AES-128-CBC decryption. len(ciphertext) must be a positive
// multiple of AESBlockSize; len(key) and len(iv) must be exactly
// AESKeySize/AESBlockSize. The returned plaintext is the same length as
// ciphertext; padding removal is the caller's responsibility.
func decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if err := checkCryptoLengths(key, iv, ciphertext); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// encrypt runs AES-128-CBC encryption. len(plaintext) must be a positive
// multiple of AESBlockSize; the caller is responsible for padding it first.
func encrypt(key, iv, plaintext []byte) ([]byte, error) {
	if err := checkCryptoLengths(key, iv, plaintext); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func checkCryptoLengths(key, iv, data []byte) error {
	if len(key) != AESKeySize {
		return gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: key must be %d bytes, got %d", ErrCrypto, AESKeySize, len(key)))
	}
	if len(iv) != ivSize {
		return gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrCrypto, ivSize, len(iv)))
	}
	if len(data) == 0 || len(data)%AESBlockSize != 0 {
		return gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: data length must be a positive multiple of %d, got %d", ErrCrypto, AESBlockSize, len(data)))
	}
	return nil
}

// randomBytes returns n cryptographically random bytes, used both for the
// fresh IV and the random (not PKCS#7) padding every encode_rs call needs.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, gwerr.New(gwerr.KindCrypto, fmt.Errorf("%w: reading random bytes: %v", ErrCrypto, err))
	}
	return b, nil
}
