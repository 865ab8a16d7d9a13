// ABOUTME: CLI for inspecting and mutating remote annotation collections
// ABOUTME: Wraps the sync layer with list/add/delete/drafts/export/token commands

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/annosync/internal/annotation"
	"github.com/2389/annosync/internal/cache"
	"github.com/2389/annosync/internal/config"
	"github.com/2389/annosync/internal/credentials"
	"github.com/2389/annosync/internal/drafts"
	"github.com/2389/annosync/internal/httpx"
	"github.com/2389/annosync/internal/source"
	"github.com/2389/annosync/internal/wire"
)

const banner = `
                                                 _
  __ _ _ __  _ __   ___  ___ _   _ _ __   ___   | |
 / _' | '_ \| '_ \ / _ \/ __| | | | '_ \ / __|  | |
| (_| | | | | | | | (_) \__ \ |_| | | | | (__   |_|
 \__,_|_| |_|_| |_|\___/|___/\__, |_| |_|\___|  (_)
                             |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	app, err := newApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "list", "ls":
		err = app.cmdList(args)
	case "add":
		err = app.cmdAdd(args)
	case "delete", "rm":
		err = app.cmdDelete(args)
	case "drafts":
		err = app.cmdDrafts(args)
	case "export":
		err = app.cmdExport(args)
	case "token":
		err = app.cmdToken(args)
	case "backends":
		err = app.cmdBackends()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: annosync <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  backends                      List configured backends")
	fmt.Println("  list <backend>                Download and list the backend's annotations")
	fmt.Println("  add <backend> <x> <y> <z> [x2 y2 z2]")
	fmt.Println("                                Add a point (3 coords) or line (6 coords)")
	fmt.Println("  delete <backend> <id>         Delete an annotation by id")
	fmt.Println("  drafts <backend>              List locally kept drafts")
	fmt.Println("  export <backend> [-o <path>]  Export annotations to an HTML report")
	fmt.Println("  token                         Check credential acquisition for the realm")
	fmt.Println()
	yellow.Println("Add flags:")
	fmt.Println("  --title <text>                Title property")
	fmt.Println("  --comment <text>              Comment (markdown allowed)")
	fmt.Println("  --kind <name>                 Annotation kind (default Note)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ANNOSYNC_CONFIG               Backend config path (default: ./annosync.yaml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  annosync list notes")
	fmt.Println("  annosync add notes 120 80 4000 --comment 'check this branch'")
	fmt.Println("  annosync delete notes Pt120_80_4000")
	fmt.Println()
}

// app wires the sync layer once per invocation and hands out per-backend
// sources on demand.
type app struct {
	cfg      *config.Config
	prefs    *Prefs
	logger   *slog.Logger
	client   *httpx.Client
	encoders *wire.Registry
	caches   *cache.Registry
	store    *drafts.Store
}

func newApp() (*app, error) {
	prefs, err := loadPrefs()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath(prefs))
	if err != nil {
		return nil, err
	}

	logger := setupLogging(cfg.Logging)
	color.NoColor = color.NoColor || !prefs.Output.Color

	realm := credentials.ParseRealm(cfg.Session.Realm)
	provider := credentials.NewProvider(realm, logger)

	client := httpx.New(httpx.Config{
		Provider:    provider,
		Refreshable: realm.Refreshable(),
		RetryCap:    cfg.HTTP.RetryCap,
		RetryBase:   cfg.HTTP.RetryBase,
		Logger:      logger,
	})

	var store *drafts.Store
	if cfg.Drafts.Path != "" {
		if store, err = drafts.NewStore(cfg.Drafts.Path); err != nil {
			return nil, fmt.Errorf("opening drafts store: %w", err)
		}
	}

	return &app{
		cfg:      cfg,
		prefs:    prefs,
		logger:   logger,
		client:   client,
		encoders: wire.NewRegistry(logger),
		caches:   cache.NewRegistry(logger),
		store:    store,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func setupLogging(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// source builds the Source for a named backend, falling back to the prefs
// default when name is empty.
func (a *app) source(name string) (*source.Source, error) {
	if name == "" {
		name = a.prefs.Defaults.Backend
	}
	if name == "" {
		return nil, fmt.Errorf("no backend named (and no default configured)")
	}
	b, ok := a.cfg.Backend(name)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	family, err := config.ParseFamily(b.Family)
	if err != nil {
		return nil, err
	}
	return source.New(source.Config{
		Endpoint: source.Endpoint{
			Name:    b.Name,
			Family:  family,
			Version: b.Version,
			Kind:    b.Kind,
			BaseURL: b.BaseURL,
			Group:   b.Group,
		},
		User:     a.cfg.Session.User,
		Encoders: a.encoders,
		Caches:   a.caches,
		Client:   a.client,
		Drafts:   a.store,
		Logger:   a.logger,
	})
}

// cmdBackends lists the configured backends.
func (a *app) cmdBackends() error {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Backends")
	cyan.Println("  --------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tFAMILY\tVERSION\tKIND\tBASE URL")
	fmt.Fprintln(w, "  ----\t------\t-------\t----\t--------")
	for _, b := range a.cfg.Backends {
		fmt.Fprintf(w, "  %s\t%s\tv%d\t%s\t%s\n", b.Name, b.Family, b.Version, b.Kind, b.BaseURL)
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdList downloads a backend's annotations and prints them.
func (a *app) cmdList(args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	s, err := a.source(name)
	if err != nil {
		return err
	}

	result, err := s.DownloadChunk(context.Background(), source.ChunkOptions{})
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Annotations")
	cyan.Println("  -----------")

	if len(result.Annotations) == 0 {
		fmt.Println("  (empty collection)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tKIND\tUSER\tCHECKED\tTITLE\tCOMMENT")
	fmt.Fprintln(w, "  ---\t----\t----\t-------\t-----\t-------")
	for _, ann := range result.Annotations {
		checked := ""
		if ann.Checked() {
			checked = "yes"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			ann.Key, ann.Kind, ann.User(), checked,
			truncate(ann.Title(), 24), truncate(ann.Comment(), 40))
	}
	w.Flush()

	fmt.Println()
	if result.Skipped > 0 {
		color.Yellow("  %d annotations, %d entries skipped\n", len(result.Annotations), result.Skipped)
	} else {
		color.Green("  %d annotations\n", len(result.Annotations))
	}
	fmt.Println()
	return nil
}

// cmdAdd creates a point or line annotation from coordinate args.
func (a *app) cmdAdd(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: add <backend> <x> <y> <z> [x2 y2 z2] [--title t] [--comment c] [--kind k]")
	}
	name := args[0]
	args = args[1:]

	var coords []float64
	var title, comment, kind string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--title", "-t":
			if i+1 < len(args) {
				title = args[i+1]
				i++
			}
		case "--comment", "-c":
			if i+1 < len(args) {
				comment = args[i+1]
				i++
			}
		case "--kind", "-k":
			if i+1 < len(args) {
				kind = args[i+1]
				i++
			}
		default:
			v, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q", args[i])
			}
			coords = append(coords, v)
		}
	}

	ann := annotation.Annotation{Kind: kind}
	switch len(coords) {
	case 3:
		ann.Geometry = annotation.GeometryPoint
		ann.PointA = [3]float64{coords[0], coords[1], coords[2]}
	case 6:
		ann.Geometry = annotation.GeometryLine
		ann.PointA = [3]float64{coords[0], coords[1], coords[2]}
		ann.PointB = [3]float64{coords[3], coords[4], coords[5]}
	default:
		return fmt.Errorf("need 3 coordinates for a point or 6 for a line, got %d", len(coords))
	}
	if title != "" {
		ann = annotation.WithTitle(ann, title)
	}
	if comment != "" {
		ann = annotation.WithComment(ann, comment)
	}

	s, err := a.source(name)
	if err != nil {
		return err
	}
	got, err := s.Add(context.Background(), ann)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Added %s\n", got.Key)
	fmt.Printf("  Kind:  %s\n", got.Kind)
	fmt.Printf("  User:  %s\n", got.User())
	if got.Title() != "" {
		fmt.Printf("  Title: %s\n", got.Title())
	}
	return nil
}

// cmdDelete removes an annotation by id.
func (a *app) cmdDelete(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: delete <backend> <id>")
	}
	s, err := a.source(args[0])
	if err != nil {
		return err
	}

	// Populate the cache first so the ownership check sees the server's view.
	if _, err := s.DownloadChunk(context.Background(), source.ChunkOptions{}); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	if err := s.Delete(context.Background(), args[1]); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted %s\n", args[1])
	return nil
}

// cmdDrafts lists annotations the upload policy kept local.
func (a *app) cmdDrafts(args []string) error {
	if a.store == nil {
		return fmt.Errorf("no drafts store configured (set drafts.path)")
	}
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	s, err := a.source(name)
	if err != nil {
		return err
	}

	saved, err := a.store.List(context.Background(), s.Endpoint().ListURL())
	if err != nil {
		return fmt.Errorf("listing drafts: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Drafts")
	cyan.Println("  ------")
	if len(saved) == 0 {
		fmt.Println("  (no drafts)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tKIND\tTITLE\tCOMMENT")
	fmt.Fprintln(w, "  ---\t----\t-----\t-------")
	for _, ann := range saved {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			ann.Key, ann.Kind, truncate(ann.Title(), 24), truncate(ann.Comment(), 40))
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdToken verifies the configured realm yields a token.
func (a *app) cmdToken(args []string) error {
	realm := credentials.ParseRealm(a.cfg.Session.Realm)
	provider := credentials.NewProvider(realm, a.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Credentials")
	cyan.Println("  -----------")
	fmt.Printf("  Realm kind:   %s\n", realm.Kind)
	fmt.Printf("  Refreshable:  %v\n", realm.Refreshable())

	token, err := provider.Get(ctx)
	if err != nil {
		color.Red("  Acquisition:  failed (%v)\n", err)
		fmt.Println()
		return nil
	}
	green := color.New(color.FgGreen)
	green.Printf("  Acquisition:  ok (%d bytes)\n", len(token))
	fmt.Println()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
