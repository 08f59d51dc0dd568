// Package configloader loads deployer configuration from YAML files on disk
// and writes the build manifest consumed by the handler.
package configloader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurre/sitedeploy-go/state/config"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig        = "SITEDEPLOY_CONFIG"
	EnvDir           = "SITEDEPLOY_DIR"
	EnvContentHash   = "SITEDEPLOY_CONTENT_HASH"
	EnvIndexFilename = "SITEDEPLOY_INDEX_FILENAME"
)

// rawConfig mirrors the YAML structure of sitedeploy.yml. Pointer fields
// distinguish "unset" from the zero value.
type rawConfig struct {
	IndexFilename              string   `yaml:"index_filename"`
	ScriptFilename             string   `yaml:"script_filename"`
	ManifestFilename           string   `yaml:"manifest_filename"`
	ContentHash                string   `yaml:"content_hash"`
	Dir                        string   `yaml:"dir"`
	Region                     string   `yaml:"region"`
	S3EndpointOverride         string   `yaml:"s3_endpoint_override"`
	CloudFrontEndpointOverride string   `yaml:"cloudfront_endpoint_override"`
	Exclusions                 []string `yaml:"exclusions"`
	Concurrency                *int     `yaml:"concurrency"`
	Cache                      *bool    `yaml:"cache"`
	SniffUnknown               *bool    `yaml:"sniff_unknown"`
}

// Manifest is the build description written next to the assets. It carries
// the entry asset name and the content hash reported as physical id.
type Manifest struct {
	IndexFilename string `yaml:"index_filename"`
	ContentHash   string `yaml:"content_hash"`
}

// Load loads the config file, overlaying values onto defaults.
// Missing or empty fields retain their default values; a missing file
// yields the defaults.
//
//	cfg, err := configloader.Load("/var/task/sitedeploy.yml")
func Load(path string) (config.Deploy, error) {
	cfg := config.Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return config.Deploy{}, fmt.Errorf("configloader: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return config.Deploy{}, fmt.Errorf("configloader: parse %s: %w", path, err)
	}

	if raw.IndexFilename != "" {
		cfg.IndexFilename = raw.IndexFilename
	}
	if raw.ScriptFilename != "" {
		cfg.ScriptFilename = raw.ScriptFilename
	}
	if raw.ManifestFilename != "" {
		cfg.ManifestFilename = raw.ManifestFilename
	}
	if raw.ContentHash != "" {
		cfg.ContentHash = raw.ContentHash
	}
	if raw.Dir != "" {
		cfg.Dir = raw.Dir
	}
	if raw.Region != "" {
		cfg.Region = raw.Region
	}
	if raw.S3EndpointOverride != "" {
		cfg.S3EndpointOverride = raw.S3EndpointOverride
	}
	if raw.CloudFrontEndpointOverride != "" {
		cfg.CloudFrontEndpointOverride = raw.CloudFrontEndpointOverride
	}
	if len(raw.Exclusions) > 0 {
		cfg.Exclusions = append([]string(nil), raw.Exclusions...)
	}
	if raw.Concurrency != nil {
		if *raw.Concurrency < 1 {
			return config.Deploy{}, fmt.Errorf("configloader: %s: concurrency must be at least 1, got %d", path, *raw.Concurrency)
		}
		cfg.Concurrency = *raw.Concurrency
	}
	if raw.Cache != nil {
		cfg.Cache = *raw.Cache
	}
	if raw.SniffUnknown != nil {
		cfg.SniffUnknown = *raw.SniffUnknown
	}

	return cfg, nil
}

// ConfigPath returns the config file to load: $SITEDEPLOY_CONFIG when set,
// otherwise the default manifest name inside dir.
//
//	path := configloader.ConfigPath(os.Getenv, exeDir)
func ConfigPath(getenv func(string) string, dir string) string {
	if p := getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(dir, config.Default().ManifestFilename)
}

// ApplyEnv overlays the SITEDEPLOY_* environment variables onto cfg.
// Unset or empty variables leave the field alone.
//
//	cfg = configloader.ApplyEnv(cfg, os.Getenv)
func ApplyEnv(cfg config.Deploy, getenv func(string) string) config.Deploy {
	if v := strings.TrimSpace(getenv(EnvDir)); v != "" {
		cfg.Dir = v
	}
	if v := strings.TrimSpace(getenv(EnvContentHash)); v != "" {
		cfg.ContentHash = v
	}
	if v := strings.TrimSpace(getenv(EnvIndexFilename)); v != "" {
		cfg.IndexFilename = v
	}
	return cfg
}

// LoadManifest reads a manifest file.
//
//	m, err := configloader.LoadManifest("dist/sitedeploy.yml")
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("configloader: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("configloader: parse %s: %w", path, err)
	}
	return m, nil
}

// WriteManifest records m's fields in the YAML file at path. Any other keys
// already in the file, such as exclusions or region, are kept along with
// their comments; a missing or empty file is created with just m's fields.
// With skipUnchanged set, a file that would not change is left untouched.
// Reports whether the file was written.
//
//	written, err := configloader.WriteManifest("dist/sitedeploy.yml", m, cfg.Cache)
func WriteManifest(path string, m Manifest, skipUnchanged bool) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("configloader: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(existing)) > 0 {
		if err := yaml.Unmarshal(existing, &doc); err != nil {
			return false, fmt.Errorf("configloader: parse %s: %w", path, err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return false, fmt.Errorf("configloader: %s: top level is not a mapping", path)
	}
	setString(root, "index_filename", m.IndexFilename)
	setString(root, "content_hash", m.ContentHash)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return false, fmt.Errorf("configloader: marshal manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("configloader: marshal manifest: %w", err)
	}
	data := buf.Bytes()

	if skipUnchanged && bytes.Equal(existing, data) {
		return false, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("configloader: write %s: %w", path, err)
	}
	return true, nil
}

// setString sets key to a string scalar in a mapping node, replacing an
// existing value in place or appending the pair.
func setString(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			*v = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, LineComment: v.LineComment}
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
