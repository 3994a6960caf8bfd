// Package main is the CLI entry point for dozeguard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmelkko/dozeguard/internal/config"
	"github.com/jmelkko/dozeguard/internal/daemon"
	"github.com/jmelkko/dozeguard/internal/domain"
	"github.com/jmelkko/dozeguard/internal/monitor"
	"github.com/jmelkko/dozeguard/internal/probe"
	"github.com/jmelkko/dozeguard/internal/store"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dozeguard",
	Short: "Suspend eligibility agent - sleeps the machine only when nothing objects",
	Long: `dozeguard watches user idle time and the system's active power requests.
When the machine has been idle past the threshold and no process, service,
driver, or remote session holds a keep-awake request, it suspends the system.

Administrator request overrides and your own ignore rules are honored, so a
chatty driver the OS already disregards will not keep the machine up.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent in the foreground",
	Long: `Runs the monitoring agent until interrupted. The agent polls idle time
every second, keeps the blocker snapshot fresh in the background, and
suspends the machine when the idle threshold is reached with no blockers.

Send SIGHUP to re-read the config file without restarting.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running agent's status",
	Long:  `Reads the status file the agent publishes and shows idle time, threshold, and the current blocker verdict.`,
	RunE:  runStatus,
}

var blockersCmd = &cobra.Command{
	Use:   "blockers",
	Short: "List active power requests after overrides and ignore rules",
	Long: `Invokes the power diagnostics tool and prints the blockers that survive
administrator overrides and your ignore rules - the same view the agent's
decision engine sees.`,
	RunE: runBlockers,
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List administrator-configured request overrides",
	RunE:  runOverrides,
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage blocker ignore rules",
	Long: `Ignore rules hide specific blockers from the decision engine. A rule names
a section (or * for any), a caller type, and an exact caller name.`,
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignore rules",
	RunE:  runIgnoreList,
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <section> <caller-type> <name>",
	Short: "Add an ignore rule",
	Long: `Adds an ignore rule. Section is SYSTEM, DISPLAY, AWAYMODE, EXECUTION, or *
for any section. Caller type is PROCESS, SERVICE, DRIVER, or UNKNOWN. The
name must match the blocker's caller name exactly (case-insensitive).

Example: dozeguard ignore add "*" DRIVER "Legacy Kernel Caller"`,
	Args: cobra.ExactArgs(3),
	RunE: runIgnoreAdd,
}

var ignoreRmCmd = &cobra.Command{
	Use:   "rm <number>",
	Short: "Remove an ignore rule by its list position",
	Args:  cobra.ExactArgs(1),
	RunE:  runIgnoreRm,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent agent decisions",
	Long:  `Shows the decision history: agent starts and stops, fired idle signals, suspends, and wakes.`,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath   string
	jsonOutput   bool
	includeRDP   bool
	resolvePIDs  bool
	rawReport    bool
	historyCount int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: "+config.DefaultPath()+")")

	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	blockersCmd.Flags().BoolVar(&includeRDP, "include-rdp", false, "Also probe for an active remote-desktop session")
	blockersCmd.Flags().BoolVar(&resolvePIDs, "resolve-pids", false, "Try to resolve process blockers to live PIDs")
	blockersCmd.Flags().BoolVar(&rawReport, "raw", false, "Print the raw diagnostics report instead")
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "Number of events to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	ignoreCmd.AddCommand(ignoreListCmd)
	ignoreCmd.AddCommand(ignoreAddCmd)
	ignoreCmd.AddCommand(ignoreRmCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(blockersCmd)
	rootCmd.AddCommand(overridesCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	agent, err := daemon.New(cfg, Version, logger)
	if err != nil {
		return err
	}
	defer agent.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigChan:
				logger.Info("received shutdown signal")
				cancel()
				return
			case <-hupChan:
				fresh, err := config.Load(configPath)
				if err != nil {
					logger.Warn("config reload failed", zap.Error(err))
					continue
				}
				agent.Reload(fresh)
			}
		}
	}()

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := store.NewStatusFile(config.StatusPath()).Read()
	if err != nil {
		return err
	}

	if jsonOutput {
		if st == nil {
			fmt.Println("{}")
			return nil
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("\n=== dozeguard Status ===")
	if st == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'dozeguard run' to start the agent.")
		fmt.Println("========================")
		return nil
	}

	age := time.Since(st.UpdatedAt).Round(time.Second)
	if age > 30*time.Second {
		fmt.Printf("Status: STALE (last update %s ago, agent pid %d may be gone)\n", age, st.PID)
	} else {
		fmt.Printf("Status: RUNNING (agent pid %d, v%s)\n", st.PID, st.Version)
	}
	fmt.Printf("Started: %s\n", st.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if bootEpoch, err := host.BootTime(); err == nil {
		fmt.Printf("System up: %s\n", time.Since(time.Unix(int64(bootEpoch), 0)).Round(time.Second))
	}
	fmt.Printf("Idle: %s (threshold %s)\n",
		time.Duration(st.IdleSeconds)*time.Second,
		time.Duration(st.ThresholdSeconds)*time.Second)

	if st.HasBlockers {
		fmt.Println("Suspend: BLOCKED")
		for _, part := range strings.Split(st.BlockerSummary, " | ") {
			if part != "" {
				fmt.Printf("  - %s\n", part)
			}
		}
	} else {
		fmt.Println("Suspend: eligible when idle threshold is reached")
	}
	fmt.Println("========================")
	return nil
}

func runBlockers(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	diag := probe.NewPowercfg(cfg.Monitor.PowercfgPath, cfg.Monitor.DiagnosticsTimeout(), logger)
	ctx := context.Background()

	if rawReport {
		raw, err := diag.RequestsReport(ctx)
		if err != nil {
			return err
		}
		fmt.Print(raw)
		return nil
	}

	// The ignore store is best effort here; without it the list is simply
	// unfiltered, like the engine's own fallback.
	var ruleSrc domain.RuleSource
	if st, err := store.Open(cfg.Store.Path, cfg.Store.KeyPath); err == nil {
		defer st.Close()
		ruleSrc = st
	} else {
		fmt.Fprintf(os.Stderr, "warning: ignore rules unavailable: %v\n", err)
	}

	inspector := monitor.NewInspector(diag, ruleSrc, probe.NewSessionProbe(logger), logger)
	mon := monitor.NewMonitor(monitor.NewSnapshotCache(inspector, logger), inspector)
	blockers, err := mon.CurrentBlockers(ctx, includeRDP)
	if err != nil {
		return err
	}

	if len(blockers) == 0 {
		fmt.Println("No active power requests. The machine may suspend when idle.")
		return nil
	}

	resolver := probe.NewProcessResolver()
	fmt.Printf("%-10s %-8s %s\n", "SECTION", "TYPE", "NAME")
	for _, b := range blockers {
		name := b.Name
		if resolvePIDs && b.CallerType == domain.CallerProcess {
			if pid, ok := resolver.FindPID(b.Name); ok {
				name = fmt.Sprintf("%s (pid %d)", name, pid)
			}
		}
		fmt.Printf("%-10s %-8s %s\n", b.Section, b.CallerType, name)
	}
	fmt.Printf("\n%d active power request(s) keep the machine awake.\n", len(blockers))
	return nil
}

func runOverrides(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	diag := probe.NewPowercfg(cfg.Monitor.PowercfgPath, cfg.Monitor.DiagnosticsTimeout(), logger)
	inspector := monitor.NewInspector(diag, nil, probe.NewSessionProbe(logger), logger)
	mon := monitor.NewMonitor(monitor.NewSnapshotCache(inspector, logger), inspector)

	out, err := mon.ActiveOverrides(context.Background())
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println("No request overrides configured.")
		return nil
	}
	fmt.Println(out)
	return nil
}

func runIgnoreList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.IgnoreRules()
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No ignore rules.")
		return nil
	}

	fmt.Printf("%-4s %-10s %-8s %s\n", "#", "SECTION", "TYPE", "NAME")
	for i, r := range rules {
		fmt.Printf("%-4d %-10s %-8s %s\n", i+1, r.Section, r.CallerType, r.Name)
	}
	return nil
}

func runIgnoreAdd(cmd *cobra.Command, args []string) error {
	section, err := parseSectionArg(args[0])
	if err != nil {
		return err
	}
	callerType, err := parseCallerTypeArg(args[1])
	if err != nil {
		return err
	}
	name := strings.TrimSpace(args[2])
	if name == "" {
		return errors.New("caller name must not be empty")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.IgnoreRules()
	if err != nil {
		return err
	}
	rule := domain.IgnoreRule{Section: section, CallerType: callerType, Name: name}
	for _, existing := range rules {
		if existing == rule {
			fmt.Println("Rule already present.")
			return nil
		}
	}

	if err := st.ReplaceIgnoreRules(append(rules, rule)); err != nil {
		return err
	}
	fmt.Printf("Added: %s %s %q\n", rule.Section, rule.CallerType, rule.Name)
	fmt.Println("The running agent picks this up on its next refresh.")
	return nil
}

func runIgnoreRm(cmd *cobra.Command, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid rule number %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.IgnoreRules()
	if err != nil {
		return err
	}
	if idx < 1 || idx > len(rules) {
		return fmt.Errorf("rule number %d out of range (1-%d)", idx, len(rules))
	}

	removed := rules[idx-1]
	if err := st.ReplaceIgnoreRules(append(rules[:idx-1], rules[idx:]...)); err != nil {
		return err
	}
	fmt.Printf("Removed: %s %s %q\n", removed.Section, removed.CallerType, removed.Name)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.RecentEvents(historyCount)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No recorded decisions yet.")
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-12s", ev.At.Local().Format("2006-01-02 15:04:05"), ev.Kind)
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Println(line)
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("dozeguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func openStore() (*store.EncryptedStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path, cfg.Store.KeyPath)
}

func parseSectionArg(arg string) (domain.Section, error) {
	s := strings.ToUpper(strings.TrimSpace(arg))
	if s == string(domain.SectionAny) {
		return domain.SectionAny, nil
	}
	section, ok := domain.ParseSection(s)
	if !ok {
		return "", fmt.Errorf("unknown section %q (want SYSTEM, DISPLAY, AWAYMODE, EXECUTION, or *)", arg)
	}
	return section, nil
}

func parseCallerTypeArg(arg string) (domain.CallerType, error) {
	switch t := domain.CallerType(strings.ToUpper(strings.TrimSpace(arg))); t {
	case domain.CallerProcess, domain.CallerService, domain.CallerDriver, domain.CallerUnknown:
		return t, nil
	default:
		return "", fmt.Errorf("unknown caller type %q (want PROCESS, SERVICE, DRIVER, or UNKNOWN)", arg)
	}
}

func createLogger(cfg config.LoggingConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
		zcfg.ErrorOutputPaths = []string{cfg.File}
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
