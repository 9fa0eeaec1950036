// Package cmd provides CLI command implementations for bgv-go.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/config"
	"github.com/Benny93/bgv-go/internal/graph"
	"github.com/Benny93/bgv-go/internal/index"
	"github.com/Benny93/bgv-go/internal/ingestion"
	"github.com/Benny93/bgv-go/internal/logging"
	"github.com/Benny93/bgv-go/internal/passes"
	"github.com/Benny93/bgv-go/internal/pool"
	"github.com/Benny93/bgv-go/internal/schedule"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Env is what every command runs against.
type Env struct {
	Out    io.Writer
	Config config.Config
	Logger *log.Logger
}

// Context returns a context carrying the logger.
func (e *Env) Context() context.Context {
	return logging.WithLogger(context.Background(), e.Logger)
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

var (
	green = color.New(color.FgGreen)
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

// InfoCmd prints the format version of a dump.
type InfoCmd struct {
	File string `arg:"" type:"existingfile" help:"BGV dump file"`
}

// Run executes the info command.
func (c *InfoCmd) Run(env *Env) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	p := bgv.NewParser(f, env.Config.ParserOptions()...)
	v, err := p.ReadFileHeader(false)
	if err != nil {
		return err
	}
	env.printf("BGV %s", v)
	if !v.Supported() {
		env.printf(" (unsupported)")
	}
	env.printf("\n")
	return nil
}

// ListCmd prints the graphs of a dump.
type ListCmd struct {
	File   string `arg:"" type:"existingfile" help:"BGV dump file"`
	Cached bool   `help:"Use and update the index"`
}

// Run executes the list command.
func (c *ListCmd) Run(env *Env) error {
	ctx := env.Context()

	var listing *index.Listing
	if c.Cached {
		store, err := openIndex(env.Config, filepath.Dir(c.File), false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var scanned bool
		listing, scanned, err = ingestion.IndexFile(ctx, c.File, store, env.Config)
		if err != nil {
			return err
		}
		env.Logger.Debug("listing", "cached", !scanned, "digest", listing.Digest)
	} else {
		var err error
		listing, err = ingestion.ScanFile(ctx, c.File, env.Config)
		if err != nil {
			return err
		}
	}

	for _, entry := range listing.Graphs {
		env.printf("%4d  %s  %s\n", entry.Index, bold.Sprint(entry.Name), faint.Sprintf("id=%d nodes=%d", entry.ID, entry.Nodes))
	}
	return nil
}

// PropsCmd prints document, graph or node properties.
type PropsCmd struct {
	Target string `arg:"" help:"FILE, FILE:GRAPH or FILE:GRAPH:NODE"`
}

// Run executes the props command.
func (c *PropsCmd) Run(env *Env) error {
	t, err := parseTarget(c.Target)
	if err != nil {
		return err
	}

	if t.graph < 0 {
		props, err := readDocumentProps(t.file, env.Config)
		if err != nil {
			return err
		}
		printProps(env, props)
		return nil
	}

	_, g, err := loadGraph(t.file, t.graph, env.Config)
	if err != nil {
		return err
	}
	if t.node < 0 {
		printProps(env, g.Props)
		stats := g.Stats()
		env.printf("%s\n", faint.Sprintf("nodes=%d edges=%d blocks=%d", stats["nodes"], stats["edges"], stats["blocks"]))
		return nil
	}
	n, ok := g.Nodes[int32(t.node)]
	if !ok {
		return fmt.Errorf("graph %d has no node %d", t.graph, t.node)
	}
	printProps(env, n.Props)
	return nil
}

func printProps(env *Env, props graph.Props) {
	for _, k := range props.Keys() {
		if obj, ok := props[k].AsObject(); ok {
			if pos, ok := obj.(*pool.SourcePosition); ok {
				printPosition(env, k, pos)
				continue
			}
		}
		env.printf("%s = %s\n", bold.Sprint(k), props[k].Text())
	}
}

// printPosition prints a source position and its inlining callers,
// innermost first.
func printPosition(env *Env, key string, pos *pool.SourcePosition) {
	env.printf("%s =\n", bold.Sprint(key))
	for _, p := range pos.Chain() {
		env.printf("  at %s", p.Name())
		if len(p.Locations) > 0 {
			loc := p.Locations[0]
			env.printf(" (%s:%d)", loc.File, loc.Line)
		}
		env.printf("\n")
	}
}

// ScheduleCmd places the floating nodes of a graph and prints where each
// one went.
type ScheduleCmd struct {
	Target string `arg:"" help:"FILE:GRAPH"`
}

// Run executes the schedule command.
func (c *ScheduleCmd) Run(env *Env) error {
	t, err := parseTarget(c.Target)
	if err != nil {
		return err
	}
	if t.graph < 0 || t.node >= 0 {
		return fmt.Errorf("schedule needs FILE:GRAPH, got %q", c.Target)
	}

	name, g, err := loadGraph(t.file, t.graph, env.Config)
	if err != nil {
		return err
	}
	if err := passes.Default().Apply(g, env.Config.PassOptions()); err != nil {
		return err
	}

	s := schedule.New(g)
	if err := s.Schedule(); err != nil {
		return err
	}

	env.printf("%s\n", bold.Sprint(name))
	for _, e := range s.Edges() {
		env.printf("  %s -> %s\n", nodeLabel(e.From), nodeLabel(e.To))
	}
	env.Logger.Debug("scheduled", "graph", name, "placed", len(s.Edges()), "nodes", g.Stats()["nodes"])
	return nil
}

func nodeLabel(n *graph.Node) string {
	label, _ := n.Props.String(graph.PropLabel)
	return fmt.Sprintf("%d %s", n.ID, label)
}

// IndexCmd indexes every dump under a directory.
type IndexCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"existingdir" help:"Dump directory"`
}

// Run executes the index command.
func (c *IndexCmd) Run(env *Env) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := openIndex(env.Config, dir, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	green.Fprintf(env.Out, "Indexing %s\n", dir)
	progress := logging.Start(env.Logger)
	result, err := ingestion.RunIndex(env.Context(), dir, store, env.Config, func(phase string, pct float64) {
		env.Logger.Debug(phase, "progress", fmt.Sprintf("%.0f%%", pct*100))
	})
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	progress.Done("Indexed", "files", result.Files)

	green.Fprintln(env.Out, "✓ Indexing complete")
	env.printf("  Files:      %d\n", result.Files)
	env.printf("  Graphs:     %d\n", result.Graphs)
	env.printf("  Unchanged:  %d\n", result.Unchanged)
	env.printf("  Failed:     %d\n", result.Failed)
	env.printf("  Duration:   %.2fs\n", result.DurationSecs)
	return nil
}

// WatchCmd keeps the index of a directory up to date.
type WatchCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"existingdir" help:"Dump directory"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(env *Env) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := openIndex(env.Config, dir, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(env.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := ingestion.RunIndex(ctx, dir, store, env.Config, nil); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	err = ingestion.WatchDir(ctx, dir, store, env.Config)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}
	env.printf("Watch mode stopped.\n")
	return nil
}

// StatusCmd shows what the index of a directory holds.
type StatusCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"existingdir" help:"Dump directory"`
}

// Run executes the status command.
func (c *StatusCmd) Run(env *Env) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	indexDir := indexPath(env.Config, dir)
	if _, err := os.Stat(indexDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no index found at %s. Run 'bgv index' first", dir)
	}

	store, err := openIndex(env.Config, dir, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(env.Context())
	if err != nil {
		return err
	}
	env.printf("Index status for %s\n", dir)
	env.printf("  Index:     %s\n", indexDir)
	env.printf("  Dumps:     %d\n", stats.Listings)
	env.printf("  Graphs:    %d\n", stats.Graphs)
	return nil
}

// CleanCmd deletes the index of a directory.
type CleanCmd struct {
	Dir   string `arg:"" optional:"" default:"." type:"existingdir" help:"Dump directory"`
	Force bool   `short:"f" help:"Skip confirmation"`

	in io.Reader
}

// Run executes the clean command.
func (c *CleanCmd) Run(env *Env) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	indexDir := indexPath(env.Config, dir)
	if _, err := os.Stat(indexDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no index found at %s. Nothing to clean", dir)
	}

	if !c.Force {
		in := c.in
		if in == nil {
			in = os.Stdin
		}
		env.printf("Delete index at %s? [y/N] ", indexDir)
		var response string
		_, _ = fmt.Fscanln(in, &response)
		if response != "y" && response != "Y" {
			env.printf("Aborted\n")
			return nil
		}
	}

	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	green.Fprintf(env.Out, "Deleted %s\n", indexDir)
	return nil
}

// indexPath resolves the configured index directory against dir.
func indexPath(cfg config.Config, dir string) string {
	if filepath.IsAbs(cfg.IndexDir) {
		return cfg.IndexDir
	}
	return filepath.Join(dir, cfg.IndexDir)
}

func openIndex(cfg config.Config, dir string, readOnly bool) (*index.BadgerBackend, error) {
	path := indexPath(cfg, dir)
	if !readOnly {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	store := index.NewBadgerBackend()
	if err := store.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing index: %w", err)
	}
	return store, nil
}

// CLI is the command-line interface.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Config  string           `short:"c" default:"${config}" type:"path" help:"Config file"`

	// Commands
	Info     InfoCmd     `cmd:"" help:"Show the format version of a dump"`
	List     ListCmd     `cmd:"" help:"List the graphs in a dump"`
	Props    PropsCmd    `cmd:"" help:"Show document, graph or node properties"`
	Schedule ScheduleCmd `cmd:"" help:"Place floating nodes of a graph"`
	Index    IndexCmd    `cmd:"" help:"Index every dump under a directory"`
	Watch    WatchCmd    `cmd:"" help:"Watch mode with live re-indexing"`
	Status   StatusCmd   `cmd:"" help:"Show index status for a directory"`
	Clean    CleanCmd    `cmd:"" help:"Delete the index of a directory"`

	out io.Writer
	err io.Writer
}

// NewCLI creates a new CLI instance writing to stdout and stderr.
func NewCLI() *CLI {
	return &CLI{out: os.Stdout, err: os.Stderr}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("bgv"),
		kong.Description("Inspect and schedule BGV compiler-graph dumps"),
		kong.UsageOnError(),
		kong.Writers(c.out, c.err),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
			"config":  config.DefaultPath,
		},
	)
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	env := &Env{
		Out:    c.out,
		Config: cfg,
		Logger: logging.New(c.err, logging.ParseLevel(cfg.LogLevel, c.Verbose)),
	}
	return kongCtx.Run(env)
}
