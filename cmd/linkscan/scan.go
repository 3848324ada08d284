package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/log"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/pipeline"
	"github.com/nao1215/linkscan/internal/report"
	"github.com/nao1215/linkscan/internal/source"
	"github.com/nao1215/linkscan/internal/transport"
	"github.com/nao1215/linkscan/internal/verify"
	"github.com/spf13/cobra"
)

// errBrokenLinksFound is returned with --fail-on-broken.
var errBrokenLinksFound = errors.New("broken links found")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url-or-file>",
		Short: "Check the links of a web page or text file",
		Long: `Scan collects the links of a single source and checks each http(s) link
with one GET request. A link is broken when the request fails or the server
answers with status 400 or above.

The source is fetched as a web page when it starts with http:// or https://,
and read as a text file otherwise. Root-relative links such as "/about" are
resolved against the base domain: the page's own scheme and host for a URL,
or --base-domain for a file.

Examples:
  # Check the links of a web page
  linkscan scan https://example.com

  # Check the URLs listed in a text file, resolving "/path" links
  linkscan scan --base-domain https://example.com links.txt

  # Save the results as NDJSON (examplecom.json)
  linkscan scan --save https://example.com

  # Check links one after another
  linkscan scan --workers 1 https://example.com

  # Render JavaScript before collecting links
  linkscan scan --render https://example.com

  # Check links through Tor, .onion links included
  linkscan scan --tor http://exampleonion.onion

  # Output JSON report
  linkscan scan --json https://example.com

Configuration file (.linkscan) example:
  defaults:
    timeout: 15s
  sites:
    docs.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	// Source flags
	cmd.Flags().StringP("base-domain", "b", "",
		"Scheme and host used to resolve root-relative links of a file source (e.g., https://example.com)")
	cmd.Flags().String("scope", "",
		"Only collect anchors inside elements matching this CSS selector")
	cmd.Flags().Bool("render", false,
		"Render the page in headless Chrome before collecting links")
	cmd.Flags().Duration("render-timeout", config.DefaultRenderTimeout,
		"Timeout for headless rendering")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size in bytes of the source page")

	// Check behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of links checked concurrently (1 checks them in order)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Redirects followed per request; a link needing more is broken")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route all requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route all requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkscan in current or home directory)")

	// Result file flags
	cmd.Flags().BoolP("save", "s", false,
		"Save the results as NDJSON, one record per link")
	cmd.Flags().StringP("name", "n", "",
		"Result file name without extension (default: derived from the base domain)")
	cmd.Flags().String("output-dir", "",
		"Directory for the result file (default: current directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")
	cmd.Flags().Bool("show-skipped", false,
		"Also print fragment and unresolved links, which are never checked")
	cmd.Flags().Bool("fail-on-broken", false,
		"Exit with a non-zero status when a broken link is found")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not record the scan in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing with a partial report")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Source = args[0]
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	if cfg.BaseDomain, err = flags.GetString("base-domain"); err != nil {
		return nil, err
	}
	if cfg.Scope, err = flags.GetString("scope"); err != nil {
		return nil, err
	}
	if cfg.Render, err = flags.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.RenderTimeout, err = flags.GetDuration("render-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.SaveToFile, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.OutputName, err = flags.GetString("name"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	if cfg.ShowSkipped, err = flags.GetBool("show-skipped"); err != nil {
		return nil, err
	}
	if cfg.FailOnBroken, err = flags.GetBool("fail-on-broken"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise silently use an empty config when no file exists.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.SiteHost = config.HostOf(cfg.Source)
	if !cfg.IsRemoteSource() {
		cfg.SiteHost = config.HostOf(cfg.BaseDomain)
	}
	cfg.ApplySite(cfg.SiteConfigs.GetSiteConfig(cfg.SiteHost), flags.Changed)

	return cfg, nil
}

// runScan loads, checks and reports the links of cfg.Source.
//
// Per-link lines and the summary go to out. Progress and diagnostics go to
// errOut. When a JSON or Markdown report is printed to out, per-link lines
// move to errOut so that out stays machine-readable.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("starting scan",
		"source", src.Location,
		"kind", src.Kind.String(),
		"baseDomain", src.BaseDomain,
		"workers", cfg.Workers,
	)

	client, stop, err := newTransport(ctx, cfg, logger, errOut)
	if err != nil {
		return err
	}
	defer stop()

	lineOut := out
	if (cfg.JSONReport || cfg.MarkdownReport) && cfg.ReportFile == "" {
		lineOut = errOut
	}
	console := report.NewConsoleWriter(lineOut,
		report.WithColor(!cfg.NoColor),
		report.WithShowSkipped(cfg.ShowSkipped),
	)

	p := pipeline.DefaultPipeline(
		&progressLoader{loader: newLoader(cfg, client, logger), out: errOut},
		verify.NewHTTPVerifier(client.HTTPClient(),
			verify.WithTimeout(cfg.Timeout),
			verify.WithLogger(logger),
		),
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithPipelineWorkers(cfg.Workers),
		pipeline.WithPipelineResultCallback(func(l model.Link) {
			if _, err := console.WriteLink(l); err != nil {
				logger.Debug("failed to print link", "url", l.ResolvedURL, "error", err)
			}
		}),
	)

	scan := model.NewScan(src)
	runErr := p.Execute(ctx, scan)
	if runErr != nil && !scan.Loaded {
		// Nothing was checked: a load failure or an interrupt during loading.
		return runErr
	}

	scanReport := scan.Results.Finalize()

	if err := outputReport(cfg, scanReport, out, console); err != nil {
		return err
	}

	// Results are persisted even when the scan was interrupted.
	persistCtx := context.WithoutCancel(ctx)

	var writeErr error
	if cfg.SaveToFile {
		fw := report.NewFileWriter(cfg.OutputDir)
		if err := fw.Write(scanReport, cfg.OutputName); err != nil {
			writeErr = err
			logger.Error("failed to save results", "error", err)
		} else {
			fmt.Fprintf(lineOut, "results saved to %s\n", fw.Path(scanReport, cfg.OutputName))
		}
	}

	if cfg.SaveToDB {
		if err := saveScanReport(persistCtx, cfg.DBDir, scanReport, logger); err != nil {
			logger.Warn("scan history not updated", "error", err)
		}
	}

	switch {
	case runErr != nil:
		return fmt.Errorf("scan interrupted after %d of %d links: %w",
			scanReport.TotalCount, len(scan.Links), runErr)
	case writeErr != nil:
		return writeErr
	case cfg.FailOnBroken && scanReport.HasBrokenLinks():
		return fmt.Errorf("%w: %d", errBrokenLinksFound, len(scanReport.BrokenLinks))
	}
	return nil
}

// newSource builds the scan source. A URL source derives its base domain
// from the URL and ignores --base-domain.
func newSource(cfg *config.Config, logger *slog.Logger) (model.Source, error) {
	if !cfg.IsRemoteSource() {
		return model.NewSource(cfg.Source, cfg.BaseDomain), nil
	}

	baseDomain, err := source.BaseDomainOf(cfg.Source)
	if err != nil {
		return model.Source{}, &source.SourceError{Source: cfg.Source, Err: err}
	}
	if cfg.BaseDomain != "" && cfg.BaseDomain != baseDomain {
		logger.Warn("ignoring --base-domain for a URL source",
			"given", cfg.BaseDomain,
			"used", baseDomain,
		)
	}
	return model.NewSource(cfg.Source, baseDomain), nil
}

// newTransport creates the HTTP client shared by the loader and the
// verifier. The returned stop function releases an embedded Tor daemon.
func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (*transport.Client, func(), error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithMaxRedirects(cfg.MaxRedirects),
		transport.WithCredentials(func(host string) transport.Credentials {
			cookie, headers := cfg.Credentials(host)
			return transport.Credentials{Cookie: cookie, Headers: headers}
		}),
	}
	noop := func() {}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, logger, errOut, opts)
	}

	if cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}

	client, err := transport.NewClient(opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if status := client.CheckProxy(ctx); status != transport.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, status.Err())
		}
		logger.Info("SOCKS5 proxy connection verified", "address", cfg.ProxyAddress)
	}

	return client, noop, nil
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and returns a
// client routed through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer, opts []transport.Option) (*transport.Client, func(), error) {
	noop := func() {}

	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(errOut, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(opts...)
	if err != nil {
		stop()
		return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckProxy(ctx); status != transport.ProxyStatusOK {
		stop()
		return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %s: %w", status, status.Err())
	}

	return client, stop, nil
}

// newLoader creates the source loader. With --render, pages are rendered in
// headless Chrome and fetched plainly when rendering fails.
func newLoader(cfg *config.Config, client *transport.Client, logger *slog.Logger) *source.Loader {
	var fetcher source.Fetcher = source.NewHTTPFetcher(client.HTTPClient(), cfg.MaxBodySize)
	if cfg.Render {
		if client.ProxyAddress() != "" {
			logger.Warn("headless rendering does not use the proxy; only link checks do")
		}
		renderer := source.NewChromedpRenderer(source.RenderOptions{
			Timeout:   cfg.RenderTimeout,
			UserAgent: cfg.UserAgent,
		}, logger)
		fetcher = source.NewFallbackFetcher(renderer, fetcher, logger)
	}

	return source.NewLoader(
		source.WithFetcher(fetcher),
		source.WithScope(cfg.Scope),
		source.WithLogger(logger),
	)
}

// progressLoader shows a spinner while the source loads.
type progressLoader struct {
	loader pipeline.SourceLoader
	out    io.Writer
}

// Load implements pipeline.SourceLoader.
func (p *progressLoader) Load(ctx context.Context, src model.Source) ([]string, error) {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(p.out))
	s.Suffix = " loading links from " + src.Location
	s.Start()
	defer s.Stop()

	return p.loader.Load(ctx, src)
}

// outputReport outputs the finalized report in the requested format.
// The console summary reuses the per-link console writer unless the report
// goes to a file.
func outputReport(cfg *config.Config, scanReport *model.ScanReport, out io.Writer, console *report.ConsoleWriter) (err error) {
	output := out
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return &report.WriteError{Destination: cfg.ReportFile, Err: err}
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return &report.WriteError{Destination: cfg.ReportFile, Err: err}
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = &report.WriteError{Destination: cfg.ReportFile, Err: cerr}
			}
		}()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	case cfg.ReportFile != "":
		writer = report.NewConsoleWriter(output, report.WithColor(false))
	default:
		writer = console
	}

	if _, err := writer.Write(scanReport); err != nil {
		return &report.WriteError{Destination: destinationName(cfg.ReportFile), Err: err}
	}
	return nil
}

// destinationName names a report destination in error messages.
func destinationName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}

// saveScanReport records the report in the history database.
func saveScanReport(ctx context.Context, dbDir string, scanReport *model.ScanReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveScanReport(ctx, scanReport)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "source", scanReport.Source, "id", id)
	return nil
}
