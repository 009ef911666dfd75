package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

func serviceAccountJSON(t *testing.T, projectID string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	body := "{}"
	for k, v := range map[string]string{
		"type":         "service_account",
		"project_id":   projectID,
		"private_key":  pemKey,
		"client_email": "svc@" + projectID + ".iam.gserviceaccount.com",
		"token_uri":    "https://oauth2.googleapis.com/token",
	} {
		var err error
		body, err = sjson.Set(body, k, v)
		require.NoError(t, err)
	}
	return body
}

func TestLoadVertexCredentials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(t, filepath.Join(dir, "proj-a.json"), serviceAccountJSON(t, "proj-a")))
	require.NoError(t, writeFile(t, filepath.Join(dir, "proj-b.json"), serviceAccountJSON(t, "proj-b")))

	pool, err := LoadVertexCredentials(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, pool, 2)

	ids := []string{pool[0].ProjectID, pool[1].ProjectID}
	require.ElementsMatch(t, []string{"proj-a", "proj-b"}, ids)
	for _, cred := range pool {
		require.NotNil(t, cred.TokenSource())
		require.NotEmpty(t, cred.SourcePath)
	}
}

func TestLoadVertexCredentialsSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(t, filepath.Join(dir, "good.json"), serviceAccountJSON(t, "proj-good")))
	require.NoError(t, writeFile(t, filepath.Join(dir, "no-project.json"), `{"private_key":"x"}`))
	require.NoError(t, writeFile(t, filepath.Join(dir, "no-key.json"), `{"project_id":"p"}`))
	require.NoError(t, writeFile(t, filepath.Join(dir, "broken.json"), `{not json`))

	pool, err := LoadVertexCredentials(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.Equal(t, "proj-good", pool[0].ProjectID)
}

func TestLoadVertexCredentialsIgnoresKeyLists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(t, filepath.Join(dir, "gemini_keys.json"), `["k1"]`))

	pool, err := LoadVertexCredentials(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Empty(t, pool)
}

func TestLoadVertexCredentialsEmptyDir(t *testing.T) {
	pool, err := LoadVertexCredentials(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	require.Empty(t, pool)
}
