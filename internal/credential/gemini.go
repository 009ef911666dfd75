package credential

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// LoadGeminiKeys reads the Gemini key file. Two formats are accepted: a plain
// JSON list of key strings (legacy, logged as a warning) and the encrypted
// envelope {"encrypted_keys": [...], "metadata": {...}}. A decryption failure
// for one element skips that element only. A missing file yields an empty
// pool, which is valid: the gateway refuses Gemini traffic with 503.
func LoadGeminiKeys(path string, dec Decryptor) ([]GeminiKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Gemini keys file not found: %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read gemini keys %s: %w", path, err)
	}

	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.IsObject() && parsed.Get("encrypted_keys").Exists():
		return decryptEnvelope(parsed, dec)
	case parsed.IsArray():
		var keys []GeminiKey
		for _, el := range parsed.Array() {
			if el.Type == gjson.String && el.String() != "" {
				keys = append(keys, GeminiKey(el.String()))
			}
		}
		log.Warnf("Loaded %d unencrypted Gemini keys from %s; consider encrypting them", len(keys), path)
		return keys, nil
	default:
		return nil, fmt.Errorf("gemini keys file %s: expected a list of strings or an encrypted envelope", path)
	}
}

func decryptEnvelope(parsed gjson.Result, dec Decryptor) ([]GeminiKey, error) {
	encrypted := parsed.Get("encrypted_keys")
	if !encrypted.IsArray() {
		return nil, fmt.Errorf("encrypted gemini keys: encrypted_keys is not a list")
	}
	if dec == nil {
		return nil, fmt.Errorf("encrypted gemini keys present but no encryption key configured")
	}

	var keys []GeminiKey
	for _, el := range encrypted.Array() {
		plain, err := dec.Decrypt(el.String())
		if err != nil {
			log.WithError(err).Error("Failed to decrypt Gemini key; skipping entry")
			continue
		}
		keys = append(keys, GeminiKey(plain))
	}

	if want := parsed.Get("metadata.original_count"); want.Exists() && want.Int() != int64(len(keys)) {
		log.Warnf("Decrypted %d Gemini keys but envelope metadata claims %d", len(keys), want.Int())
	}
	log.Infof("Loaded and decrypted %d Gemini keys", len(keys))
	return keys, nil
}
