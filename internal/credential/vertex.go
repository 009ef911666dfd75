package credential

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// LoadVertexCredentials scans dir for service-account JSON files and returns
// the pool of usable credentials. One bad file never aborts the load: it is
// logged and skipped. Files whose name contains "gemini_keys" are ignored so
// a misplaced key list cannot be mistaken for a service account.
func LoadVertexCredentials(ctx context.Context, dir string, client *http.Client) ([]*Vertex, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan vertex credentials %s: %w", dir, err)
	}

	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	var pool []*Vertex
	for _, fpath := range files {
		if strings.Contains(filepath.Base(fpath), "gemini_keys") {
			continue
		}
		cred, err := loadVertexFile(ctx, fpath)
		if err != nil {
			log.WithError(err).Errorf("Failed to load %s", fpath)
			continue
		}
		pool = append(pool, cred)
		log.Infof("Loaded Vertex credential for project: %s", cred.ProjectID)
	}

	if len(pool) == 0 {
		log.Warnf("No Vertex credentials found in %s", dir)
	}
	return pool, nil
}

func loadVertexFile(ctx context.Context, fpath string) (*Vertex, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	info := gjson.ParseBytes(data)
	projectID := info.Get("project_id").String()
	if projectID == "" {
		return nil, fmt.Errorf("no project_id in service account file")
	}
	if !info.Get("private_key").Exists() {
		return nil, fmt.Errorf("no private_key in service account file")
	}

	conf, err := google.JWTConfigFromJSON(data, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}

	return &Vertex{
		ProjectID:   projectID,
		SourcePath:  fpath,
		tokenSource: conf.TokenSource(ctx),
	}, nil
}
