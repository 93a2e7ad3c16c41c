package vortex

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a Config. Only declarative settings can
// be expressed in a file; hooks and mappers are attached in code.
type fileConfig struct {
	BaseURL   *string                 `yaml:"baseURL"`
	Settings  fileSettings            `yaml:"settings"`
	Endpoints map[string]fileEndpoint `yaml:"endpoints"`
}

type fileEndpoint struct {
	Path     string                  `yaml:"path"`
	Settings fileSettings            `yaml:"settings"`
	Methods  map[string]fileSettings `yaml:"methods"`
}

type fileSettings struct {
	Headers      map[string]string `yaml:"headers"`
	Timeout      string            `yaml:"timeout"`
	Redirect     string            `yaml:"redirect"`
	ResponseType string            `yaml:"responseType"`
	MaxRetries   *int              `yaml:"maxRetries"`
	Query        map[string]any    `yaml:"query"`
	Cache        *fileCache        `yaml:"cache"`
}

type fileCache struct {
	Enabled  *bool  `yaml:"enabled"`
	Strategy string `yaml:"strategy"`
	TTL      string `yaml:"ttl"`
}

// LoadConfigFile reads a YAML client configuration from path.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, NewError(ErrorTypeConfig, fmt.Sprintf("failed to read config file %s", path), err, nil)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML client configuration. A missing baseURL key
// is a CONFIG error; an empty string is allowed for same-origin use.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, NewError(ErrorTypeConfig, "failed to parse config", err, nil)
	}
	if fc.BaseURL == nil {
		return Config{}, configError("baseURL is required")
	}

	cfg := Config{
		BaseURL:   *fc.BaseURL,
		Endpoints: make(map[string]EndpointConfig, len(fc.Endpoints)),
	}

	var err error
	if cfg.Settings, err = fc.Settings.toSettings("settings"); err != nil {
		return Config{}, err
	}
	for name, fe := range fc.Endpoints {
		ep := EndpointConfig{Path: fe.Path, Methods: make(map[string]Settings, len(fe.Methods))}
		if ep.Settings, err = fe.Settings.toSettings("endpoints." + name); err != nil {
			return Config{}, err
		}
		for method, fs := range fe.Methods {
			s, err := fs.toSettings("endpoints." + name + ".methods." + method)
			if err != nil {
				return Config{}, err
			}
			ep.Methods[strings.ToUpper(method)] = s
		}
		cfg.Endpoints[name] = ep
	}
	return cfg, nil
}

func (fs fileSettings) toSettings(where string) (Settings, error) {
	s := Settings{
		Headers:      fs.Headers,
		Redirect:     RedirectPolicy(fs.Redirect),
		ResponseType: ResponseType(fs.ResponseType),
		MaxRetries:   fs.MaxRetries,
		Query:        fs.Query,
	}

	var err error
	if s.Timeout, err = parseFileDuration(fs.Timeout, where+".timeout"); err != nil {
		return Settings{}, err
	}
	if fs.Cache != nil {
		s.Cache = &CacheSettings{
			Enabled:  fs.Cache.Enabled,
			Strategy: CacheStrategy(fs.Cache.Strategy),
		}
		if s.Cache.TTL, err = parseFileDuration(fs.Cache.TTL, where+".cache.ttl"); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// parseFileDuration accepts Go durations ("1.5s") and "none" for NoTimeout.
func parseFileDuration(v, where string) (time.Duration, error) {
	switch strings.TrimSpace(v) {
	case "":
		return 0, nil
	case "none", "off":
		return NoTimeout, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, NewError(ErrorTypeConfig, fmt.Sprintf("invalid duration %q at %s", v, where), err, nil)
	}
	return d, nil
}
