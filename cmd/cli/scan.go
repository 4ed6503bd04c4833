package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/akmust/portsweep/internal/config"
	"github.com/akmust/portsweep/internal/errors"
	"github.com/akmust/portsweep/internal/logging"
	"github.com/akmust/portsweep/internal/output"
	"github.com/akmust/portsweep/internal/resolve"
	"github.com/akmust/portsweep/internal/scan"
	"github.com/akmust/portsweep/internal/target"
)

var (
	scanHost        string
	scanStart       string
	scanEnd         string
	scanPorts       string
	scanTimeout     float64
	scanConcurrency int
	scanBanner      bool
	scanBannerBytes int
	scanReverseDNS  bool
	scanOutput      string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe targets for open TCP ports",
	Long: `Probe a single host or an inclusive IPv4 address range across a set
of TCP ports. Each (address, port) pair is attempted once with a bounded
connect timeout; outcomes are classified as open, closed, or error.

Interrupting a running scan (Ctrl+C) stops dispatch of new probes, lets
in-flight probes finish, and prints a summary of the partial results.`,
	Example: `  portsweep scan --host 192.168.1.10 --ports 22,80,443
  portsweep scan --start 10.0.0.1 --end 10.0.0.254 --ports 80
  portsweep scan --host localhost --ports 8000-8100 --banner --rdns
  portsweep scan --host example.com --ports 443 --timeout 0.5 --output results.csv`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanHost, "host", "", "Single target host (IP or hostname)")
	scanCmd.Flags().StringVar(&scanStart, "start", "", "Start of inclusive IPv4 range")
	scanCmd.Flags().StringVar(&scanEnd, "end", "", "End of inclusive IPv4 range")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "Port specification, e.g. '22,80,8000-8010'")
	scanCmd.Flags().Float64Var(&scanTimeout, "timeout", 0, "Per-probe connect timeout in seconds")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "Number of concurrent probe workers")
	scanCmd.Flags().BoolVar(&scanBanner, "banner", false, "Attempt a best-effort banner read on open ports")
	scanCmd.Flags().IntVar(&scanBannerBytes, "banner-bytes", 0, "Maximum banner bytes to read")
	scanCmd.Flags().BoolVar(&scanReverseDNS, "rdns", false, "Reverse-resolve addresses with open ports")
	scanCmd.Flags().StringVar(&scanOutput, "output", "", "CSV output path")
	scanCmd.Flags().Lookup("output").NoOptDefVal = "auto"

	scanCmd.MarkFlagsMutuallyExclusive("host", "start")
	scanCmd.MarkFlagsMutuallyExclusive("host", "end")
	scanCmd.MarkFlagsRequiredTogether("start", "end")
}

func runScan(cmd *cobra.Command, args []string) {
	if scanHost == "" && scanStart == "" {
		fmt.Fprintf(os.Stderr, "Error: either --host or --start/--end must be specified\n\n")
		_ = cmd.Help()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cmd, cfg)

	addresses, err := target.ExpandAddresses(scanHost, scanStart, scanEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ports, err := target.ExpandPorts(cfg.Scan.Ports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scanner, err := scan.New(scan.Config{
		Addresses:         addresses,
		Ports:             ports,
		Timeout:           cfg.Scan.Timeout,
		Concurrency:       cfg.Scan.Concurrency,
		BannerEnabled:     cfg.Scan.Banner,
		BannerMaxBytes:    cfg.Scan.BannerMaxBytes,
		ReverseDNSEnabled: cfg.Scan.ReverseDNS,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Scan.ReverseDNS {
		scanner.SetResolver(resolve.New(cfg.Scan.Timeout))
	}
	if verbose {
		scanner.OnProgress(func(p scan.Progress) {
			output.PrintProgress(os.Stdout, p)
		})
	}

	// An interrupt stops dispatch; in-flight probes drain to a partial summary.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scanning %d address(es) x %d port(s) = %d probes (workers=%d, timeout=%v)\n",
		len(addresses), len(ports), len(addresses)*len(ports),
		cfg.Scan.Concurrency, cfg.Scan.Timeout)

	session, err := scanner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	output.PrintSummary(os.Stdout, session, scanner.State(), cfg.Output.MaxSummaryRows)

	if path := resolveOutputPath(cfg); path != "" {
		if err := output.WriteCSVFile(path, session.Results, cfg.Output.BannerTruncate); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Results saved to %s\n", path)
	}

	logging.Info("Scan session finished",
		"session_id", session.ID.String(),
		"state", scanner.State(),
		"completed", session.Completed,
		"total", session.Total)
}

// loadConfig loads the effective configuration from the file viper
// discovered during initialization: the explicit --config path or an
// implicit ./config.yaml. Without either, defaults are returned.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.ConfigFileUsed())
}

// applyFlagOverrides layers explicitly-set command line flags over the
// loaded configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "ports":
			cfg.Scan.Ports = scanPorts
		case "timeout":
			cfg.Scan.Timeout = time.Duration(scanTimeout * float64(time.Second))
		case "concurrency":
			cfg.Scan.Concurrency = scanConcurrency
		case "banner":
			cfg.Scan.Banner = scanBanner
		case "banner-bytes":
			cfg.Scan.BannerMaxBytes = scanBannerBytes
		case "rdns":
			cfg.Scan.ReverseDNS = scanReverseDNS
		case "output":
			cfg.Output.File = scanOutput
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n",
			errors.WrapConfigError(errors.CodeValidation, "invalid scan configuration", err))
		os.Exit(1)
	}
}

// resolveOutputPath maps the configured output setting to a concrete file
// path; "auto" selects a timestamped filename in the current directory.
func resolveOutputPath(cfg *config.Config) string {
	switch cfg.Output.File {
	case "":
		return ""
	case "auto":
		return output.DefaultFilename(time.Now())
	default:
		return cfg.Output.File
	}
}
