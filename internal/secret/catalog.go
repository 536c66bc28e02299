package secret

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"impostor/pkg/types"
)

//go:embed catalog.json
var defaultCatalogJSON []byte

// DefaultCatalog returns the built-in item list.
func DefaultCatalog() []types.Item {
	items, err := parseCatalog(defaultCatalogJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return items
}

// LoadCatalog reads a JSON array of items from disk.
func LoadCatalog(path string) ([]types.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	items, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return items, nil
}

func parseCatalog(data []byte) ([]types.Item, error) {
	var items []types.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	for i := range items {
		items[i].Word = strings.TrimSpace(items[i].Word)
		if items[i].Word == "" {
			return nil, fmt.Errorf("%w (entry %d)", ErrInvalidItem, i)
		}
	}
	return items, nil
}
