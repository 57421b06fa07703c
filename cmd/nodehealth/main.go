package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"nodehealth/internal/agent"
	"nodehealth/internal/config"
	"nodehealth/internal/events"
	"nodehealth/internal/export"
	"nodehealth/internal/model"
	"nodehealth/internal/render"
	"nodehealth/internal/spool"
	"nodehealth/internal/triage"
)

const usage = `nodehealth - node-local health agent + spool triage

Usage:
  nodehealth agent run [--config <path>]
  nodehealth agent once [--config <path>]
  nodehealth triage tail [--config <path>] [--spool <path>] [--n 200]
  nodehealth triage summarize [--config <path>] [--spool <path>] [--tail 200]
      [--format text|json|table|pretty|explain] [--node <id>]
      [--top-k-reasons 5] [--only-degraded] [--only-unhealthy]
  nodehealth triage summarize-dir [--config <path>] --dir <path>
      [--glob '*.jsonl'] [--tail 200] [--format ...] [--top-k-reasons 5]
  nodehealth triage export [--config <path>] [--spool <path>] [--tail 200] --out <file>
  nodehealth version
`

func main() {
	// Local .env overrides for dev machines; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "version":
		fmt.Fprintf(os.Stdout, "nodehealth %s\n", agent.Version)
	case "agent":
		handleAgent(os.Args[2:])
	case "triage":
		handleTriage(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleAgent(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "agent subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "run":
		agentRun(args[1:])
	case "once":
		agentOnce(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown agent subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func agentRun(args []string) {
	fs := flag.NewFlagSet("agent run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	opts, err := agentOptions(*configPath)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := agent.Run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func agentOnce(args []string) {
	fs := flag.NewFlagSet("agent once", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	opts, err := agentOptions(*configPath)
	if err != nil {
		fatal(err)
	}
	fatal(agent.Once(opts))
}

func agentOptions(configPath string) (agent.Options, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return agent.Options{}, err
	}
	if cfg.Agent == nil {
		cfg.Agent = &config.AgentConfig{}
	}
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		return agent.Options{}, err
	}

	return agent.Options{
		Config: *cfg.Agent,
		Events: events.New(os.Stdout, agent.Version),
		Stdout: os.Stdout,
	}, nil
}

func handleTriage(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "triage subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "tail":
		triageTail(args[1:])
	case "summarize":
		triageSummarize(args[1:])
	case "summarize-dir":
		triageSummarizeDir(args[1:])
	case "export":
		triageExport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown triage subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func triageTail(args []string) {
	fs := flag.NewFlagSet("triage tail", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	spoolPath := fs.String("spool", "", "spool file path")
	n := fs.Int("n", 0, "number of trailing lines")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	path, tailN, _, _ := triageDefaults(cfg, *spoolPath, *n, 0, "")

	records, invalid, err := spool.ReadTail(path, tailN)
	if err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stdout, "spool=%s reports_parsed=%d reports_invalid=%d\n", path, len(records), invalid)
	if len(records) > 0 {
		last := records[len(records)-1]
		seq := "n/a"
		if v, ok := last.Seq(); ok {
			seq = fmt.Sprintf("%d", v)
		}
		fmt.Fprintf(os.Stdout, "last node_id=%s seq=%s emitted_at=%s health=%s\n",
			last.NodeID(), seq, last.EmittedAt(), last.Health())
	}
}

func triageSummarize(args []string) {
	fs := flag.NewFlagSet("triage summarize", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	spoolPath := fs.String("spool", "", "spool file path")
	tailN := fs.Int("tail", 0, "tail window size")
	format := fs.String("format", "", "output format: "+strings.Join(render.Names(), "|"))
	node := fs.String("node", "", "restrict to one node id")
	topK := fs.Int("top-k-reasons", 0, "truncate top reasons per node")
	onlyDegraded := fs.Bool("only-degraded", false, "show only DEGRADED or UNHEALTHY nodes")
	onlyUnhealthy := fs.Bool("only-unhealthy", false, "show only UNHEALTHY nodes")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	path, n, k, formatName := triageDefaults(cfg, *spoolPath, *tailN, *topK, *format)

	renderer, ok := render.ByName(formatName)
	if !ok {
		fatal(fmt.Errorf("unknown format %q (have %s)", formatName, strings.Join(render.Names(), ", ")))
	}

	records, invalid, err := spool.ReadTail(path, n)
	if err != nil {
		fatal(err)
	}

	summaries := triage.Summarize(records, k)
	nodesSeen := len(summaries)

	summaries = triage.FilterNode(summaries, *node)
	if *onlyUnhealthy {
		summaries = triage.FilterUnhealthy(summaries)
	} else if *onlyDegraded {
		summaries = triage.FilterDegraded(summaries)
	}

	meta := triage.Meta{
		SchemaVersion:  triage.SchemaVersion,
		SpoolPath:      path,
		TailN:          n,
		NodesSeen:      nodesSeen,
		NodesEmitted:   len(summaries),
		ReportsParsed:  len(records),
		ReportsInvalid: invalid,
		ComputedAt:     model.UTCNow(),
	}

	out, err := renderer(summaries, meta)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintln(os.Stdout, out)

	// Alerting contract: a matched --only-* filter is a reportable condition.
	if (*onlyDegraded || *onlyUnhealthy) && len(summaries) > 0 {
		os.Exit(2)
	}
}

func triageSummarizeDir(args []string) {
	fs := flag.NewFlagSet("triage summarize-dir", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	dir := fs.String("dir", "", "directory of per-node spool files")
	glob := fs.String("glob", "*.jsonl", "spool filename pattern")
	tailN := fs.Int("tail", 0, "tail window size per file")
	format := fs.String("format", "", "output format: "+strings.Join(render.Names(), "|"))
	topK := fs.Int("top-k-reasons", 0, "truncate top reasons per node")
	_ = fs.Parse(args)

	if *dir == "" {
		fatal(errors.New("--dir is required"))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	_, n, k, formatName := triageDefaults(cfg, "", *tailN, *topK, *format)

	renderer, ok := render.ByName(formatName)
	if !ok {
		fatal(fmt.Errorf("unknown format %q (have %s)", formatName, strings.Join(render.Names(), ", ")))
	}

	paths, err := filepath.Glob(filepath.Join(*dir, *glob))
	if err != nil {
		fatal(err)
	}
	sort.Strings(paths)

	var merged []*model.RawRecord
	invalidTotal := 0
	for _, path := range paths {
		records, invalid, err := spool.ReadTail(path, n)
		if err != nil {
			fatal(fmt.Errorf("read %s: %w", path, err))
		}
		if err := enforceSingleNode(path, records); err != nil {
			fatal(err)
		}
		merged = append(merged, records...)
		invalidTotal += invalid
	}

	summaries := triage.Summarize(merged, k)
	meta := triage.Meta{
		SchemaVersion:  triage.SchemaVersion,
		SpoolDir:       *dir,
		TailN:          n,
		NodesSeen:      len(summaries),
		NodesEmitted:   len(summaries),
		ReportsParsed:  len(merged),
		ReportsInvalid: invalidTotal,
		FilesSeen:      len(paths),
		ComputedAt:     model.UTCNow(),
	}

	out, err := renderer(summaries, meta)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintln(os.Stdout, out)
}

// enforceSingleNode rejects spools that mix node identities; the directory
// layout is one spool file per node.
func enforceSingleNode(path string, records []*model.RawRecord) error {
	seen := ""
	for _, rec := range records {
		nodeID := rec.NodeID()
		if nodeID == "" {
			continue
		}
		if seen == "" {
			seen = nodeID
			continue
		}
		if nodeID != seen {
			return fmt.Errorf("spool %s mixes node ids %q and %q", path, seen, nodeID)
		}
	}
	return nil
}

func triageExport(args []string) {
	fs := flag.NewFlagSet("triage export", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	spoolPath := fs.String("spool", "", "spool file path")
	tailN := fs.Int("tail", 0, "tail window size")
	out := fs.String("out", "", "output file (gzip JSONL)")
	_ = fs.Parse(args)

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	path, n, _, _ := triageDefaults(cfg, *spoolPath, *tailN, 0, "")

	records, invalid, err := spool.ReadTail(path, n)
	if err != nil {
		fatal(err)
	}
	if err := export.WriteFile(*out, records); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %s records=%d invalid=%d\n", *out, len(records), invalid)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

// triageDefaults resolves flag values against the config's triage section,
// falling back to package defaults. Flags win when set.
func triageDefaults(cfg config.Config, spoolPath string, tailN, topK int, format string) (string, int, int, string) {
	tr := cfg.Triage
	if tr == nil {
		tr = &config.TriageConfig{}
	}
	withDefaults := config.Config{Triage: tr}
	config.ApplyDefaults(&withDefaults)

	if spoolPath == "" {
		spoolPath = tr.SpoolPath
	}
	if tailN == 0 {
		tailN = tr.TailN
	}
	if topK == 0 {
		topK = tr.TopKReasons
	}
	if format == "" {
		format = tr.Format
	}
	return spoolPath, tailN, topK, format
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
