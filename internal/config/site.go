package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds HTTP settings for requests to one host.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for requests to the site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File is the structure of the configuration file. Every field is
// optional; unset fields leave the defaults alone.
type File struct {
	Mode              string        `yaml:"mode,omitempty"`
	Backend           string        `yaml:"backend,omitempty"`
	ProxyAddress      string        `yaml:"proxyAddress,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	TorStartupTimeout time.Duration `yaml:"torStartupTimeout,omitempty"`
	StrictOnion       *bool         `yaml:"strictOnion,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	DBDir             string        `yaml:"dbDir,omitempty"`
	SaveHistory       *bool         `yaml:"saveHistory,omitempty"`

	// Defaults apply to every site unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps hostnames (e.g. "example.onion") to site settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the settings for host, merged over the defaults.
// Hostnames are matched case-insensitively.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:  f.Defaults.Cookie,
		Headers: maps.Clone(f.Defaults.Headers),
	}

	site, ok := f.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}

// Apply copies every value set in f onto c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Mode != "" {
		c.Mode = f.Mode
	}
	if f.Backend != "" {
		c.Backend = f.Backend
	}
	if f.ProxyAddress != "" {
		c.ProxyAddress = f.ProxyAddress
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.TorStartupTimeout != 0 {
		c.TorStartupTimeout = f.TorStartupTimeout
	}
	if f.StrictOnion != nil {
		c.StrictOnion = *f.StrictOnion
	}
	if f.Concurrency != 0 {
		c.Concurrency = f.Concurrency
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.SaveHistory != nil {
		c.SaveHistory = *f.SaveHistory
	}
	c.Sites = f
}

// SiteConfig returns the per-site settings for host. It is empty when no
// configuration file was loaded.
func (c *Config) SiteConfig(host string) SiteConfig {
	if c.Sites == nil {
		return SiteConfig{}
	}
	return c.Sites.GetSiteConfig(host)
}
