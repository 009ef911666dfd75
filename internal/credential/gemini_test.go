package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

func writeFile(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestLoadGeminiKeysPlainList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, writeFile(t, path, `["key-one-1234","key-two-5678"]`))

	keys, err := LoadGeminiKeys(path, nil)
	require.NoError(t, err)
	require.Equal(t, []GeminiKey{"key-one-1234", "key-two-5678"}, keys)
}

func TestLoadGeminiKeysMissingFile(t *testing.T) {
	keys, err := LoadGeminiKeys(filepath.Join(t.TempDir(), "absent.json"), nil)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestLoadGeminiKeysBadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, writeFile(t, path, `{"keys": "nope"}`))

	_, err := LoadGeminiKeys(path, nil)
	require.Error(t, err)
}

func envelopeFixture(t *testing.T, dec *FernetDecryptor, plain []string, count int) string {
	t.Helper()
	body := "{}"
	for i, k := range plain {
		sealed, err := dec.Encrypt(k)
		require.NoError(t, err)
		var serr error
		body, serr = sjson.Set(body, fmt.Sprintf("encrypted_keys.%d", i), sealed)
		require.NoError(t, serr)
	}
	body, err := sjson.Set(body, "metadata.original_count", count)
	require.NoError(t, err)
	return body
}

func TestLoadGeminiKeysEncryptedEnvelope(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(encoded)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, writeFile(t, path, envelopeFixture(t, dec, []string{"k1-aaaa", "k2-bbbb"}, 2)))

	keys, err := LoadGeminiKeys(path, dec)
	require.NoError(t, err)
	require.Equal(t, []GeminiKey{"k1-aaaa", "k2-bbbb"}, keys)
}

func TestLoadGeminiKeysSkipsUndecryptableEntries(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(encoded)
	require.NoError(t, err)

	body := envelopeFixture(t, dec, []string{"good-key-1234"}, 2)
	body, err = sjson.Set(body, "encrypted_keys.1", "bm90IGEgdG9rZW4=")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, writeFile(t, path, body))

	keys, err := LoadGeminiKeys(path, dec)
	require.NoError(t, err)
	require.Equal(t, []GeminiKey{"good-key-1234"}, keys)
}

func TestLoadGeminiKeysEnvelopeWithoutDecryptor(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(encoded)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, writeFile(t, path, envelopeFixture(t, dec, []string{"k"}, 1)))

	_, err = LoadGeminiKeys(path, nil)
	require.Error(t, err)
}

func TestGeminiKeyID(t *testing.T) {
	require.Equal(t, "...1234", GeminiKey("AAAAAAAA1234").ID())
	require.Equal(t, "...ab", GeminiKey("ab").ID())
}
