package config

import (
	"net"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/torhybrid/internal/transport"
)

// Routing modes accepted in Config.Mode.
const (
	// ModeClearnet connects to every destination directly.
	ModeClearnet = "clearnet"
	// ModeTor connects to every destination through Tor.
	ModeTor = "tor"
	// ModeHybrid sends .onion hosts through Tor and the rest directly.
	ModeHybrid = "hybrid"
)

// Tor backends accepted in Config.Backend.
const (
	// BackendProxy uses an already running Tor SOCKS5 proxy.
	BackendProxy = "proxy"
	// BackendNative starts an embedded Tor daemon on first use.
	BackendNative = "native"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "torhybrid"

	// DefaultMode routes by hostname.
	DefaultMode = ModeHybrid

	// DefaultBackend expects a system Tor daemon.
	DefaultBackend = BackendProxy

	// DefaultProxyAddress is the standard Tor SOCKS5 port. 127.0.0.1 is used
	// instead of localhost so no name lookup is needed to reach it.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds one fetch. Tor adds several relay hops, so it
	// is generous.
	DefaultTimeout = 120 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultConcurrency is how many URLs are fetched at once.
	DefaultConcurrency = 10

	// DefaultUserAgent identifies torhybrid in HTTP requests.
	DefaultUserAgent = "torhybrid/1.0 (+https://github.com/nao1215/torhybrid)"

	// HistoryFileName is the SQLite file created inside DBDir.
	HistoryFileName = "history.db"
)

// Config holds all configuration options for torhybrid.
// It is built once from defaults, file and flags, then passed down
// explicitly.
type Config struct {
	// Mode is the routing mode: clearnet, tor or hybrid.
	Mode string

	// Backend selects how Tor is reached: proxy or native.
	Backend string

	// ProxyAddress is the Tor SOCKS5 proxy in "host:port" format.
	// Only used by the proxy backend.
	ProxyAddress string

	// Timeout bounds each fetch, including connection setup.
	Timeout time.Duration

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon. Only used by the native backend.
	TorStartupTimeout time.Duration

	// StrictOnion rejects .onion hosts that are not valid v3 addresses
	// instead of handing them to Tor.
	StrictOnion bool

	// Concurrency is the number of URLs fetched in parallel.
	Concurrency int

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/torhybrid on Linux).
	DBDir string

	// SaveHistory records every fetch outcome in the history database.
	SaveHistory bool

	// Verbose enables debug logging and shows onion hostnames in logs.
	Verbose bool

	// ConfigFilePath is an explicit configuration file path. When empty,
	// FindConfigFile searches the usual locations.
	ConfigFilePath string

	// Sites holds per-site HTTP settings from the configuration file.
	Sites *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Mode:              DefaultMode,
		Backend:           DefaultBackend,
		ProxyAddress:      DefaultProxyAddress,
		Timeout:           DefaultTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Concurrency:       DefaultConcurrency,
		UserAgent:         DefaultUserAgent,
		DBDir:             XDGDataDir(),
		SaveHistory:       true,
	}
}

// XDGDataDir returns the XDG data directory for torhybrid.
// On Linux: ~/.local/share/torhybrid
// On macOS: ~/Library/Application Support/torhybrid
// On Windows: %LOCALAPPDATA%\torhybrid
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for torhybrid.
// On Linux: ~/.config/torhybrid
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// HistoryPath returns the history database path inside DBDir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DBDir, HistoryFileName)
}

// UsesTor reports whether the configured mode ever connects through Tor.
func (c *Config) UsesTor() bool {
	mode, err := transport.ParseMode(c.Mode)
	return err == nil && mode != transport.ClearnetOnly
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	// Mode names are parsed the same way the transport is built.
	if _, err := transport.ParseMode(c.Mode); err != nil {
		return ErrInvalidMode
	}
	if !slices.Contains([]string{BackendProxy, BackendNative}, c.Backend) {
		return ErrInvalidBackend
	}
	if c.UsesTor() && c.Backend == BackendProxy && !isHostPort(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.TorStartupTimeout <= 0 {
		return ErrInvalidTorStartupTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.SaveHistory && c.DBDir == "" {
		return ErrNoDBDir
	}
	return nil
}

// isHostPort reports whether address is "host:port" with a port in 1-65535.
func isHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	return err == nil && n > 0
}
