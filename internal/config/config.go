package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkscan"

	// DefaultTimeout bounds each link check and the source fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultWorkers is the number of concurrent link checks.
	DefaultWorkers = 8

	// DefaultUserAgent identifies linkscan in HTTP requests so site
	// operators can recognize checker traffic in their logs.
	DefaultUserAgent = "linkscan/1.0 (+https://github.com/nao1215/linkscan)"

	// DefaultMaxRedirects is the number of redirects a request follows
	// before it counts as failed.
	DefaultMaxRedirects = 30

	// DefaultMaxBodySize limits the size of a remote source page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultRenderTimeout bounds headless browser rendering with --render.
	DefaultRenderTimeout = 60 * time.Second
)

// Config holds all options of a scan run. It is populated from CLI flags
// and the config file before the pipeline starts; the pipeline itself never
// prompts for input.
type Config struct {
	// Source is the URL or file path to scan. A value starting with
	// http:// or https:// is fetched as a web page, anything else is read
	// as a local text file.
	Source string

	// BaseDomain is the scheme+host prefix used to resolve root-relative
	// links, e.g. "https://example.com". Required for resolving such links
	// in file sources; URL sources derive it from the URL itself.
	BaseDomain string

	// SaveToFile enables writing the NDJSON result file.
	SaveToFile bool

	// OutputName is the result file name without extension. When empty it
	// is derived from the base domain.
	OutputName string

	// OutputDir is the directory for the result file. Empty means the
	// current directory.
	OutputDir string

	// Workers is the number of concurrent link checks. 1 checks links
	// strictly one after another in discovery order.
	Workers int

	// Timeout is the per-request timeout for the source fetch and each
	// link check.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxRedirects is the number of redirects a request follows. A link
	// needing more is broken. 0 follows none.
	MaxRedirects int

	// Cookie is sent with requests to SiteHost, typically from the config
	// file.
	Cookie string

	// Headers are extra request headers for SiteHost, typically from the
	// config file.
	Headers map[string]string

	// SiteHost is the host of the scanned site: the source URL's host, or
	// the host of BaseDomain for a file source. Its site entry is merged
	// into c by ApplySite.
	SiteHost string

	// MaxBodySize is the maximum size in bytes of a remote source page.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ProxyAddress routes all traffic through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes all traffic through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used with UseTor.
	TorStartupTimeout time.Duration

	// Render loads a URL source in headless Chrome so that links inserted by
	// JavaScript are found. Falls back to a plain fetch on failure.
	Render bool

	// RenderTimeout bounds headless rendering.
	RenderTimeout time.Duration

	// Scope is an optional CSS selector; only anchors inside matching
	// elements of a URL source are collected.
	Scope string

	// JSONReport prints the full report as JSON instead of the console summary.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the report as Markdown instead of the console
	// summary. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the JSON or Markdown report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// SaveToDB stores the finalized report in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/linkscan on Linux).
	DBDir string

	// NoColor disables colored console labels.
	NoColor bool

	// ShowSkipped prints a console line for fragment and unresolved links,
	// which are never checked.
	ShowSkipped bool

	// FailOnBroken makes the scan command exit non-zero when at least one
	// link is broken.
	FailOnBroken bool

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches the current directory, the home directory and the XDG
	// config directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// Verbose enables debug log output. When false, only warnings and errors
	// are logged.
	Verbose bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxRedirects:      DefaultMaxRedirects,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		RenderTimeout:     DefaultRenderTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for linkscan.
// On Linux: ~/.local/share/linkscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkscan.
// On Linux: ~/.config/linkscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// IsRemoteSource reports whether the source is a URL.
func (c *Config) IsRemoteSource() bool {
	return strings.HasPrefix(c.Source, "http://") || strings.HasPrefix(c.Source, "https://")
}

// Validate checks the configuration and returns the first problem found.
// It also normalizes BaseDomain by dropping a trailing slash.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return ErrNoSource
	}

	if c.BaseDomain != "" {
		base, err := normalizeBaseDomain(c.BaseDomain)
		if err != nil {
			return err
		}
		c.BaseDomain = base
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}

	return nil
}

// normalizeBaseDomain checks that base is an http(s) scheme and host with
// nothing after it but an optional "/", and returns it as "scheme://host".
func normalizeBaseDomain(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseDomain, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("%w: %q is not http or https", ErrInvalidBaseDomain, base)
	case u.Hostname() == "":
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidBaseDomain, base)
	case u.User != nil:
		return "", fmt.Errorf("%w: %q contains user info", ErrInvalidBaseDomain, base)
	case u.Path != "" && u.Path != "/", u.RawQuery != "", u.ForceQuery, u.Fragment != "":
		return "", fmt.Errorf("%w: %q has more than a scheme and host", ErrInvalidBaseDomain, base)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Credentials returns the cookie and headers sent to host. SiteHost gets
// Cookie and Headers. Another host gets its own sites entry merged over the
// defaults, and a host without an entry gets nothing.
func (c *Config) Credentials(host string) (cookie string, headers map[string]string) {
	host = strings.ToLower(host)
	if host == "" {
		return "", nil
	}
	if host == c.SiteHost {
		return c.Cookie, c.Headers
	}
	if c.SiteConfigs == nil {
		return "", nil
	}
	if _, ok := c.SiteConfigs.Sites[host]; !ok {
		return "", nil
	}
	site := c.SiteConfigs.GetSiteConfig(host)
	return site.Cookie, site.Headers
}

// ApplySite merges a site configuration into c. Values whose flag was set
// explicitly on the command line are kept; isFlagSet receives the flag
// name ("user-agent", "timeout", "workers") and may be nil.
func (c *Config) ApplySite(site SiteConfig, isFlagSet func(name string) bool) {
	explicit := func(name string) bool {
		return isFlagSet != nil && isFlagSet(name)
	}

	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			c.Headers[k] = v
		}
	}
	if site.UserAgent != "" && !explicit("user-agent") {
		c.UserAgent = site.UserAgent
	}
	if !site.Timeout.IsZero() && !explicit("timeout") {
		c.Timeout = site.Timeout.Duration
	}
	if site.Workers > 0 && !explicit("workers") {
		c.Workers = site.Workers
	}
}
