package intake

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"formbridge.dev/formbridge/internal/domain"
)

// LoadDir reads every *.yaml/*.yml file under dir as an IntakeDefinition and
// registers it. Intended for startup-time population; registration is not
// re-run on file changes.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read intake dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			return fmt.Errorf("load intake file %q: %w", path, err)
		}
	}
	return nil
}

func (r *Registry) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var def domain.IntakeDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return r.Register(&def)
}
