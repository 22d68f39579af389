package tokenstore

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedBlobInvalid is returned when a sealed blob fails authentication
// or is structurally malformed. Callers treat it the same as an absent
// session; the error never says which byte was wrong.
var ErrSealedBlobInvalid = errors.New("sealed blob invalid")

// KeySize is the required length in bytes of a [Cipher] key.
const KeySize = chacha20poly1305.KeySize

// Cipher seals and opens session blobs with XChaCha20-Poly1305. The
// 24-byte random nonce is prepended to each sealed blob, so a single key
// can seal an unbounded number of sessions without nonce bookkeeping.
//
// Cipher instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Cipher struct {
	key [KeySize]byte
}

// NewCipher creates a [Cipher] from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// NewKey generates a random 32-byte sealing key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts and authenticates plaintext, returning nonce||ciphertext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a blob produced by [Cipher.Seal]. Any
// tampering, truncation, or wrong-key input returns [ErrSealedBlobInvalid].
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedBlobInvalid
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSealedBlobInvalid
	}
	return plaintext, nil
}
