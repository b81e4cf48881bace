package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and validates a configuration file (YAML or JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	doc, err := decodeTree(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc); err != nil {
		return nil, &AggregateError{Errors: []error{
			&domain.ConfigurationError{Field: "document", Reason: err.Error()},
		}}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeTree turns a document into the generic JSON tree the schema validator expects.
func decodeTree(data []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse json config: %w", err)
		}
		return raw, nil
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	// Round-trip through JSON so numbers and maps have JSON types.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize yaml config: %w", err)
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Normalize expands zone templates, applies defaults and validates semantics.
// Parse calls it; configurations built in code must call it before use.
func (c *Config) Normalize() error {
	c.expandZones()
	c.applyDefaults()
	return c.Validate()
}

func (c *Config) expandZones() {
	if c.Zones == nil {
		return
	}
	for _, zone := range c.Zones.Names {
		for _, tmpl := range c.Zones.Metrics {
			ch := tmpl
			ch.Zone = zone
			if ch.ID == "" {
				ch.ID = zone + "." + ch.Metric
			} else {
				ch.ID = zone + "." + ch.ID
			}
			ch.Thresholds = append([]Threshold(nil), tmpl.Thresholds...)
			ch.Routes = append([]Route(nil), tmpl.Routes...)
			c.Channels = append(c.Channels, ch)
		}
	}
	c.Zones = nil
}

const (
	DefaultColumnPattern = `^idp_iaq_l19_(?P<zone>[a-z0-9]+)_(?P<metric>[a-z0-9_]+)$`
	DefaultTimestamp     = "datetime"
	DefaultPSIRegion     = "central"
	DefaultPSIMetric     = "psi_twenty_four_hourly"
)

func (c *Config) applyDefaults() {
	if c.Run.Reorder == "" {
		c.Run.Reorder = ReorderReject
	}
	if c.Run.Parallelism <= 0 {
		c.Run.Parallelism = 1
	}
	if c.Columns.Pattern == "" {
		c.Columns.Pattern = DefaultColumnPattern
	}
	if c.Columns.Timestamp == "" {
		c.Columns.Timestamp = DefaultTimestamp
	}
	if c.Columns.Layout == "" {
		c.Columns.Layout = time.RFC3339
	}
	if psi := c.Reference.PSI; psi != nil {
		if psi.Region == "" {
			psi.Region = DefaultPSIRegion
		}
		if psi.Metric == "" {
			psi.Metric = DefaultPSIMetric
		}
		if psi.Timeout <= 0 {
			psi.Timeout = 10 * time.Second
		}
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Persistence.Mode == "" {
			ch.Persistence.Mode = ModeCount
		}
		if ch.MinAlertTier == domain.TierInvalid {
			ch.MinAlertTier = domain.TierWarning
		}
		if ch.Zone == "" || ch.Metric == "" {
			if zone, metric, ok := strings.Cut(ch.ID, "."); ok {
				if ch.Zone == "" {
					ch.Zone = zone
				}
				if ch.Metric == "" {
					ch.Metric = metric
				}
			}
		}
	}
}
