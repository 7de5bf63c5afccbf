// Package secret decrypts platform access tokens stored by the account
// management layer. Tokens are Fernet tokens, base64url-wrapped once more,
// under a key derived from ENCRYPTION_KEY with PBKDF2-SHA256.
package secret

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfSalt       = "instabot-salt-v1"
	kdfIterations = 100000
)

var ErrUndecryptable = errors.New("token cannot be decrypted with the configured key")

// Box holds the derived Fernet key.
type Box struct {
	key *fernet.Key
}

// NewBox derives the Fernet key from passphrase.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("encryption key is empty")
	}
	derived := pbkdf2.Key([]byte(passphrase), []byte(kdfSalt), kdfIterations, 32, sha256.New)
	var k fernet.Key
	copy(k[:], derived)
	return &Box{key: &k}, nil
}

// Decrypt unwraps a stored token. Token age is not checked.
func (b *Box) Decrypt(stored string) (string, error) {
	tok, err := base64.URLEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding stored token: %w", err)
	}
	msg := fernet.VerifyAndDecrypt(tok, -1, []*fernet.Key{b.key})
	if msg == nil {
		return "", ErrUndecryptable
	}
	return string(msg), nil
}

// Encrypt produces the stored form of token. The core only decrypts; this
// exists for fixtures and the operator CLI.
func (b *Box) Encrypt(token string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(token), b.key)
	if err != nil {
		return "", fmt.Errorf("encrypting token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(tok), nil
}
