package bridge

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of a client configuration file:
//
//	proxyCookies: true
//	clientAwareness: true
//	cookieAttributes:
//	  maxAge: 168h
//	  sameSite: lax
//	clients:
//	  default: https://api.example.com/graphql
//	  github:
//	    httpEndpoint: https://api.github.com/graphql
//	    authType: null
//	    tokenStorage: localStorage
//
// Keys other than these are ignored so the same file can carry
// application settings.
type fileConfig struct {
	ProxyCookies     *bool `yaml:"proxyCookies"`
	ClientAwareness  bool  `yaml:"clientAwareness"`
	CookieAttributes struct {
		CookieAttributes `yaml:",inline"`
		SameSite         string `yaml:"sameSite"`
	} `yaml:"cookieAttributes"`
	Clients yaml.Node `yaml:"clients"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. Client declaration order is
// preserved.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := NewConfig()
	if fc.ProxyCookies != nil {
		cfg.ProxyCookies = *fc.ProxyCookies
	}
	cfg.ClientAwareness = fc.ClientAwareness
	cfg.CookieAttributes = fc.CookieAttributes.CookieAttributes

	ss, err := parseSameSite(fc.CookieAttributes.SameSite)
	if err != nil {
		return Config{}, err
	}
	cfg.CookieAttributes.SameSite = ss

	if fc.Clients.Kind == 0 {
		return cfg, nil
	}
	if fc.Clients.Kind != yaml.MappingNode {
		return Config{}, fmt.Errorf("failed to parse config: clients must be a mapping (line %d)", fc.Clients.Line)
	}

	for i := 0; i+1 < len(fc.Clients.Content); i += 2 {
		name := fc.Clients.Content[i].Value

		var cc ClientConfig
		if err := fc.Clients.Content[i+1].Decode(&cc); err != nil {
			return Config{}, fmt.Errorf("failed to parse client %s: %w", name, err)
		}
		cfg.Clients = append(cfg.Clients, ClientEntry{Name: name, Source: Static(cc)})
	}
	return cfg, nil
}

// UnmarshalYAML accepts either a bare endpoint string or a mapping, and
// maps `authType: null` to DisableAuthType.
func (c *ClientConfig) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*c = ClientConfig{HTTPEndpoint: n.Value}
		return nil
	}

	type plain ClientConfig
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = ClientConfig(p)

	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "authType" && n.Content[i+1].ShortTag() == "!!null" {
			c.AuthType = ""
			c.DisableAuthType = true
		}
	}
	return nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("failed to parse config: unknown sameSite %q", s)
	}
}
