package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for integration keys the catalog does not know.
var ErrNotFound = errors.New("unknown integration key")

//go:embed integrations.yaml
var defaultCatalog []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default parses the embedded integration catalog.
func Default() (*Catalog, error) {
	return parse(defaultCatalog)
}

// ReadFrom loads an integration catalog from a YAML file.
func ReadFrom(path string) (*Catalog, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	catalog, err := parse(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return catalog, nil
}

func parse(buf []byte) (*Catalog, error) {
	var top topLevel
	if err := yaml.Unmarshal(buf, &top); err != nil {
		return nil, fmt.Errorf("unmarshalling catalog: %w", err)
	}

	integrations := make(map[string]Integration, len(top.Integrations))
	for key, integration := range top.Integrations {
		integration.Key = key
		if err := validate.Struct(integration); err != nil {
			return nil, fmt.Errorf("invalid integration %s: %w", key, err)
		}
		if integration.AuthType == AuthTypeOAuth && integration.ServerURL == "" && integration.FallbackOAuthConfig == nil {
			return nil, fmt.Errorf("invalid integration %s: oauth integrations need a serverUrl or a fallbackOAuthConfig", key)
		}
		integrations[key] = integration
	}

	return &Catalog{Integrations: integrations}, nil
}

// Get looks up an integration definition. Unknown keys are a configuration
// error, never a silent default.
func (c *Catalog) Get(key string) (Integration, error) {
	integration, found := c.Integrations[key]
	if !found {
		return Integration{}, fmt.Errorf("integration %s: %w", key, ErrNotFound)
	}
	return integration, nil
}

// Keys returns the catalog's integration keys.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.Integrations))
	for key := range c.Integrations {
		keys = append(keys, key)
	}
	return keys
}
