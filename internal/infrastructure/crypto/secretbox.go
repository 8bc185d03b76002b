package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jhoicas/tributa-api/internal/application/taxpayer"
)

const (
	keySize   = 32
	nonceSize = 24
)

var _ taxpayer.Cipher = (*SecretBox)(nil)

// ErrDecrypt el texto cifrado fue alterado o corresponde a otra clave.
var ErrDecrypt = errors.New("no se pudo descifrar la credencial")

// SecretBox cifra credenciales SUNAT con NaCl secretbox (XSalsa20-Poly1305).
// Formato: nonce(24) || caja sellada.
type SecretBox struct {
	key [keySize]byte
}

// NewSecretBox recibe la clave de 32 bytes en base64 (estándar o URL).
func NewSecretBox(encodedKey string) (*SecretBox, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(encodedKey)
	}
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_KEY no es base64 válido: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("CREDENTIALS_KEY debe tener %d bytes, tiene %d", keySize, len(raw))
	}
	var sb SecretBox
	copy(sb.key[:], raw)
	return &sb, nil
}

// GenerateKey clave aleatoria en base64, para desarrollo.
func GenerateKey() (string, error) {
	var k [keySize]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k[:]), nil
}

func (s *SecretBox) Encrypt(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *SecretBox) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
