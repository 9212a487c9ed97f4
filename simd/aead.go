package simd

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
)

// ErrInvalidInput is returned for malformed key/IV sizes.
var ErrInvalidInput = errors.New("simd: invalid input")

// ErrAuthFailure is returned when AEAD tag verification fails. The caller
// must not use any plaintext bytes from a call that returned this error.
var ErrAuthFailure = errors.New("simd: authentication failure")

const (
	aeadKeySize = 16 // AES-128
	aeadIVSize  = 12 // GCM standard nonce size
)

// AEAD128GCMEncrypt seals plaintext under key/iv/aad and returns
// ciphertext||tag. Go's crypto/aes already contains hand-written assembly
// for AES-NI (amd64) and the ARMv8 crypto extensions (arm64); crypto/cipher's
// GCM wraps PCLMULQDQ-accelerated GHASH on amd64 the same way. We therefore
// do not hand-roll AES/GCM kernels here (the ecosystem offers no portable
// alternative AEAD implementation in the example pack that plugs into this
// dispatch contract better than the standard library does) — see DESIGN.md
// for the stdlib justification. The Dispatcher still owns the *contract*:
// size validation, the tag_len parameter, and BestBackendFor observability.
func (d *Dispatcher) AEAD128GCMEncrypt(plaintext, key, iv, aad []byte, tagLen int) ([]byte, error) {
	_, gcm, err := d.gcmFor(key, iv, tagLen)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, aad), nil
}

func (d *Dispatcher) gcmFor(key, iv []byte, tagLen int) (cipher.Block, cipher.AEAD, error) {
	if len(key) != aeadKeySize {
		return nil, nil, ErrInvalidInput
	}
	if len(iv) != aeadIVSize {
		return nil, nil, ErrInvalidInput
	}
	if tagLen <= 0 || tagLen > 16 {
		return nil, nil, ErrInvalidInput
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, ErrInvalidInput
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagLen)
	if err != nil {
		return nil, nil, ErrInvalidInput
	}
	return block, gcm, nil
}

// AEAD128GCMDecrypt opens ciphertextAndTag (ciphertext||tag) under
// key/iv/aad. On tag mismatch it returns a nil plaintext and ErrAuthFailure;
// no decrypted bytes are handed back to the caller.
func (d *Dispatcher) AEAD128GCMDecrypt(ciphertextAndTag, key, iv, aad []byte, tagLen int) ([]byte, error) {
	_, gcm, err := d.gcmFor(key, iv, tagLen)
	if err != nil {
		return nil, err
	}
	if len(ciphertextAndTag) < tagLen {
		return nil, ErrInvalidInput
	}
	plaintext, err := gcm.Open(nil, iv, ciphertextAndTag, aad)
	if err != nil {
		if plaintext != nil {
			for i := range plaintext {
				plaintext[i] = 0
			}
		}
		return nil, ErrAuthFailure
	}
	return plaintext, nil
}

// ConstantTimeTagsEqual compares two AEAD tags without leaking timing
// information about the position of the first mismatching byte, as required
// for AuthFailure detection. crypto/cipher.AEAD.Open already does this
// internally; this helper exists for call sites (e.g. legacy outer-datagram
// ciphers in the tunnel glue) that verify a tag out-of-band.
func ConstantTimeTagsEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
