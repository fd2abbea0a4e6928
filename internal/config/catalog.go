package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
)

// LoadCatalogFile reads a fallback model catalog from a YAML file:
//
//	models:
//	  - name: xgboost_20250306_193033
//	    description: XGBoost Model (Default)
//
// Entries without a name are rejected. The first entry is the default model.
func LoadCatalogFile(path string) ([]domain.ModelDescriptor, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog file: %w", err)
	}

	var models []domain.ModelDescriptor
	if err := k.UnmarshalWithConf("models", &models, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog file %s lists no models", path)
	}

	seen := make(map[string]bool, len(models))
	for i, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog file %s: model %d has no name", path, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("catalog file %s: duplicate model %q", path, name)
		}
		seen[name] = true
		models[i].Name = name
	}
	return models, nil
}
