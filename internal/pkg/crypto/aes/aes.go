// objectstorage/internal/pkg/crypto/aes/aes.go
package aes

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	BlockSize = aes.BlockSize
	IVSize    = aes.BlockSize // CBC IV is one block
)

var (
	ErrInvalidPadding    = fmt.Errorf("invalid PKCS#7 padding")
	ErrInvalidCiphertext = fmt.Errorf("ciphertext is not a positive multiple of the block size")
)

// Encrypter streams plaintext through CBC. The slice returned by Update
// and Final is reused by the next call.
type Encrypter interface {
	Update(p []byte) []byte
	Final() []byte
}

// Decrypter streams ciphertext through CBC, holding back the last block
// until Final so padding can be checked.
type Decrypter interface {
	Update(p []byte) ([]byte, error)
	Final() ([]byte, error)
}

type AESEncryptor struct {
	keySize int
}

func NewAESEncryptor(keySize int) *AESEncryptor {
	return &AESEncryptor{
		keySize: keySize,
	}
}

func (e *AESEncryptor) GenerateKey() ([]byte, error) {
	key := make([]byte, e.keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

func (e *AESEncryptor) GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// EncryptChunk encrypts a whole message with PKCS#7 padding.
func (e *AESEncryptor) EncryptChunk(chunk []byte, key []byte, iv []byte) ([]byte, error) {
	enc, err := e.NewEncrypter(key, iv)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), enc.Update(chunk)...)
	return append(out, enc.Final()...), nil
}

// DecryptChunk reverses EncryptChunk.
func (e *AESEncryptor) DecryptChunk(encryptedChunk []byte, key []byte, iv []byte) ([]byte, error) {
	dec, err := e.NewDecrypter(key, iv)
	if err != nil {
		return nil, err
	}
	head, err := dec.Update(encryptedChunk)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), head...)
	tail, err := dec.Final()
	if err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}

func (e *AESEncryptor) NewEncrypter(key []byte, iv []byte) (Encrypter, error) {
	block, err := e.newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	return &streamEncrypter{mode: cipher.NewCBCEncrypter(block, iv)}, nil
}

func (e *AESEncryptor) NewDecrypter(key []byte, iv []byte) (Decrypter, error) {
	block, err := e.newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	return &streamDecrypter{mode: cipher.NewCBCDecrypter(block, iv)}, nil
}

func (e *AESEncryptor) newBlock(key, iv []byte) (cipher.Block, error) {
	// Validate inputs
	if len(key) != e.keySize {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", e.keySize, len(key))
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: expected %d, got %d", IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return block, nil
}

type streamEncrypter struct {
	mode    cipher.BlockMode
	pending []byte
	out     []byte
	final   bool
}

func (s *streamEncrypter) Update(p []byte) []byte {
	if s.final {
		panic("aes: Update after Final")
	}
	s.out = s.out[:0]
	if len(s.pending) > 0 {
		need := BlockSize - len(s.pending)
		if len(p) < need {
			s.pending = append(s.pending, p...)
			return s.out
		}
		s.pending = append(s.pending, p[:need]...)
		p = p[need:]
		s.out = s.crypt(s.out, s.pending)
		s.pending = s.pending[:0]
	}
	whole := len(p) - len(p)%BlockSize
	s.out = s.crypt(s.out, p[:whole])
	s.pending = append(s.pending, p[whole:]...)
	return s.out
}

// Final pads the pending tail; an empty tail yields a full padding block.
func (s *streamEncrypter) Final() []byte {
	s.final = true
	pad := BlockSize - len(s.pending)
	s.pending = append(s.pending, bytes.Repeat([]byte{byte(pad)}, pad)...)
	s.out = s.crypt(s.out[:0], s.pending)
	s.pending = s.pending[:0]
	return s.out
}

func (s *streamEncrypter) crypt(dst, src []byte) []byte {
	if len(src) == 0 {
		return dst
	}
	n := len(dst)
	dst = append(dst, src...)
	s.mode.CryptBlocks(dst[n:], dst[n:])
	return dst
}

type streamDecrypter struct {
	mode    cipher.BlockMode
	pending []byte
	out     []byte
	final   bool
}

func (s *streamDecrypter) Update(p []byte) ([]byte, error) {
	if s.final {
		return nil, fmt.Errorf("aes: Update after Final")
	}
	s.pending = append(s.pending, p...)
	// keep at least one whole block back for Final
	ready := len(s.pending) - len(s.pending)%BlockSize
	if ready == len(s.pending) && ready > 0 {
		ready -= BlockSize
	}
	s.out = append(s.out[:0], s.pending[:ready]...)
	if ready > 0 {
		s.mode.CryptBlocks(s.out, s.out)
	}
	s.pending = append(s.pending[:0], s.pending[ready:]...)
	return s.out, nil
}

func (s *streamDecrypter) Final() ([]byte, error) {
	s.final = true
	if len(s.pending) != BlockSize {
		return nil, ErrInvalidCiphertext
	}
	s.out = append(s.out[:0], s.pending...)
	s.mode.CryptBlocks(s.out, s.out)
	s.pending = s.pending[:0]
	pad := int(s.out[BlockSize-1])
	if pad == 0 || pad > BlockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range s.out[BlockSize-pad:] {
		if int(b) != pad {
			return nil, ErrInvalidPadding
		}
	}
	return s.out[:BlockSize-pad], nil
}
