package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// catalog is the persisted document index, a JSON file under the data
// directory. It is rewritten whole on every change; document volumes are
// small enough that this beats carrying a second database.
type catalog struct {
	path string
	mu   sync.Mutex

	Records map[string]*Record `json:"records"`
}

func catalogPath(dataDir string) string {
	return filepath.Join(dataDir, "documents.json")
}

// loadCatalog reads the catalog at path, returning an empty catalog when the
// file does not exist yet.
func loadCatalog(path string) (*catalog, error) {
	cat := &catalog{path: path, Records: make(map[string]*Record)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if cat.Records == nil {
		cat.Records = make(map[string]*Record)
	}
	return cat, nil
}

// Save writes the catalog atomically via a temp file rename.
func (c *catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename catalog: %w", err)
	}
	return nil
}
