package credential

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(encoded)
	require.NoError(t, err)

	sealed, err := dec.Encrypt("AIzaSySecretKey1234")
	require.NoError(t, err)
	require.NotEqual(t, "AIzaSySecretKey1234", sealed)

	plain, err := dec.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "AIzaSySecretKey1234", plain)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	enc, err := NewFernetDecryptorFromKey(k1)
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(k2)
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)
	_, err = dec.Decrypt(sealed)
	require.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	dec, err := NewFernetDecryptorFromKey(encoded)
	require.NoError(t, err)

	_, err = dec.Decrypt("%%%not-base64%%%")
	require.Error(t, err)

	_, err = dec.Decrypt(base64.StdEncoding.EncodeToString([]byte("not a fernet token")))
	require.Error(t, err)
}

func TestNewFernetDecryptorFromFile(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)

	keyFile := t.TempDir() + "/encryption.key"
	require.NoError(t, writeFile(t, keyFile, encoded+"\n"))

	dec, err := NewFernetDecryptor(keyFile)
	require.NoError(t, err)

	sealed, err := dec.Encrypt("v")
	require.NoError(t, err)
	plain, err := dec.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "v", plain)
}

func TestNewFernetDecryptorBadKey(t *testing.T) {
	_, err := NewFernetDecryptorFromKey("short")
	require.Error(t, err)
}
