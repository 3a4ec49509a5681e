package synckit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/logging"
)

// ResolverConfig is the file form of a resolver setup.
//
//	node_id: device-a
//	strict: false
//	logging:
//	  level: debug
//	  format: text
//	entities:
//	  - type: Order
//	    strategy: last_writer_wins
//	  - type: Product
//	    strategy: field_level_merge
//
// Custom and FieldLevelMerge entries only select the strategy; the
// functions themselves are registered in code.
type ResolverConfig struct {
	NodeID   string          `json:"node_id" yaml:"node_id"`
	Strict   bool            `json:"strict,omitempty" yaml:"strict,omitempty"`
	Logging  *logging.Config `json:"logging,omitempty" yaml:"logging,omitempty"`
	Entities []EntityConfig  `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// EntityConfig assigns a strategy to one entity type.
type EntityConfig struct {
	Type     string `json:"type" yaml:"type"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

// LoadConfig reads a YAML or JSON config file. The format follows the file
// extension; anything other than .json is read as YAML.
func LoadConfig(path string) (*ResolverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.OpLoadConfig, errors.Comp("synckit"), errors.KindConfiguration,
			fmt.Errorf("failed to read config file %s: %w", path, err))
	}
	return ParseConfig(data, detectFormat(path))
}

// ParseConfig decodes and validates a config in the given format ("yaml",
// "yml" or "json").
func ParseConfig(data []byte, format string) (*ResolverConfig, error) {
	var cfg ResolverConfig
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.NewFormatError(errors.OpLoadConfig, "synckit", fmt.Errorf("failed to parse YAML config: %w", err))
		}
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, errors.NewFormatError(errors.OpLoadConfig, "synckit", fmt.Errorf("failed to parse JSON config: %w", err))
		}
	default:
		return nil, errors.NewConfigurationError(errors.OpLoadConfig, fmt.Errorf("unsupported config format: %s", format))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func detectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}

// Validate checks the node id, strategy names and duplicate entity types.
func (c *ResolverConfig) Validate() error {
	if c.NodeID == "" {
		return errors.NewConfigurationError(errors.OpLoadConfig, fmt.Errorf("node_id is required"))
	}
	seen := make(map[string]struct{}, len(c.Entities))
	for i, e := range c.Entities {
		if e.Type == "" {
			return errors.NewConfigurationError(errors.OpLoadConfig, fmt.Errorf("entities[%d]: type is required", i))
		}
		if _, dup := seen[e.Type]; dup {
			return errors.NewConfigurationError(errors.OpLoadConfig, fmt.Errorf("entities[%d]: %s listed twice", i, e.Type))
		}
		seen[e.Type] = struct{}{}
		if _, err := ParseStrategy(e.Strategy); err != nil {
			return errors.NewConfigurationError(errors.OpLoadConfig, fmt.Errorf("entities[%d]: %w", i, err))
		}
	}
	return nil
}

// NewResolverFromConfig builds a resolver from cfg. A logging section
// replaces the default discard logger unless opts supply WithLogger.
func NewResolverFromConfig(cfg *ResolverConfig, opts ...Option) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var base []Option
	if cfg.Logging != nil {
		base = append(base, WithLogger(logging.NewLogger(*cfg.Logging)))
	}
	if cfg.Strict {
		base = append(base, WithStrictMode())
	}
	r, err := NewResolver(cfg.NodeID, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := r.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyConfig registers the entity strategies listed in cfg.
func (r *Resolver) ApplyConfig(cfg *ResolverConfig) error {
	for _, e := range cfg.Entities {
		s, err := ParseStrategy(e.Strategy)
		if err != nil {
			return err
		}
		if err := r.ConfigureType(e.Type, s); err != nil {
			return err
		}
	}
	r.root.WithComponent(logging.ComponentConfig).Debug("resolver configured",
		"node_id", r.nodeID, "entity_types", len(cfg.Entities))
	return nil
}
