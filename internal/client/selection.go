package client

import (
	"fmt"
	"os"

	"github.com/atinyakov/TagLock/internal/models"
)

// ReadSelection loads a selection exported by the picker. An empty path
// means an empty selection.
func ReadSelection(path string) (models.Selection, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selection %q: %w", path, err)
	}
	return models.Selection(data), nil
}
