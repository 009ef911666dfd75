package credential

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/fernet/fernet-go"
)

// Decryptor decrypts one encrypted key-file element.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// FernetDecryptor decrypts values produced by the operator key tooling:
// base64-wrapped Fernet ciphertext.
type FernetDecryptor struct {
	keys []*fernet.Key
}

// NewFernetDecryptor loads the master key from the given file. The file holds
// a single urlsafe-base64 Fernet key, as written by the encryption tooling.
func NewFernetDecryptor(keyFile string) (*FernetDecryptor, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read encryption key %s: %w", keyFile, err)
	}
	key, err := fernet.DecodeKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key %s: %w", keyFile, err)
	}
	return &FernetDecryptor{keys: []*fernet.Key{key}}, nil
}

// NewFernetDecryptorFromKey builds a decryptor from an encoded key string.
func NewFernetDecryptorFromKey(encoded string) (*FernetDecryptor, error) {
	key, err := fernet.DecodeKey(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return &FernetDecryptor{keys: []*fernet.Key{key}}, nil
}

// Encrypt seals one value in the inverse envelope: Fernet token wrapped in
// an outer base64 layer.
func (d *FernetDecryptor) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), d.keys[0])
	if err != nil {
		return "", fmt.Errorf("fernet encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(tok), nil
}

// GenerateKey produces a fresh urlsafe-base64 Fernet key.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return key.Encode(), nil
}

// Decrypt unwraps the outer base64 layer and verifies the Fernet token.
// TTL is not enforced; keys are long-lived secrets, not session tokens.
func (d *FernetDecryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plain := fernet.VerifyAndDecrypt(raw, 0, d.keys)
	if plain == nil {
		return "", fmt.Errorf("fernet verification failed")
	}
	return string(plain), nil
}
