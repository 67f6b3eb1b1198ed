package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/papercut/pkg/config"
)

const usage = `usage:
  papercut render [-config file] [-o out.stl] script.papercut
  papercut plan [-config file] [-iterations n] [-seed s] [-count k] [-radius x,y,z] [-center x,y,z]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "papercut:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "render":
		return runRender(ctx, args[1:], stdout, stderr)
	case "plan":
		return runPlan(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadApp builds an App from an optional config file.
func loadApp(ctx context.Context, path string, stderr io.Writer) (*App, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	app := NewAppWithConfig(cfg, cfg.NewLogger(stderr))
	app.startup(ctx)
	return app, nil
}

func runRender(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "TOML config file")
	out := fs.String("o", "", "write meshes to this STL file instead of printing JSON; relative paths land in the project directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("render: expected one script, got %d", fs.NArg())
	}

	app, err := loadApp(ctx, *cfgPath, stderr)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if *out == "" {
		result := app.Evaluate(string(source))
		if err := writeJSON(stdout, result); err != nil {
			return err
		}
		return resultError(result)
	}

	path := *out
	if !filepath.IsAbs(path) {
		path = app.cfg.File(path)
	}
	result, err := app.Export(string(source), path)
	for _, w := range result.Warnings {
		fmt.Fprintln(stderr, "warning:", w.Message)
	}
	if rerr := resultError(result); rerr != nil {
		return rerr
	}
	return err
}

// resultError reports script errors on a result as a single error.
func resultError(r EvalResult) error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Line > 0 {
			msgs = append(msgs, fmt.Sprintf("line %d: %s", e.Line, e.Message))
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func runPlan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "TOML config file")
	iterations := fs.Int("iterations", 0, "cuts per plan (default from config)")
	seed := fs.Int64("seed", 0, "first seed")
	count := fs.Int("count", 1, "number of plans, one per consecutive seed")
	workers := fs.Int("workers", 0, "parallel samplers, 0 means unbounded")
	radius := vecFlag{1, 1, 1}
	center := vecFlag{}
	fs.Var(&radius, "radius", "half-extents x,y,z")
	fs.Var(&center, "center", "extent center x,y,z")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := loadApp(ctx, *cfgPath, stderr)
	if err != nil {
		return err
	}
	if !flagSet(fs, "iterations") {
		*iterations = app.cfg.Wrinkle.Iterations
	}

	plans, err := app.Plan(PlanRequest{
		Center:     center,
		Radius:     radius,
		Iterations: *iterations,
		Seed:       *seed,
		Count:      *count,
		Workers:    *workers,
	})
	if err != nil {
		return err
	}
	return writeJSON(stdout, plans)
}

// flagSet reports whether name was given on the command line.
func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// vecFlag parses "x,y,z".
type vecFlag [3]float64

func (v *vecFlag) String() string {
	return fmt.Sprintf("%g,%g,%g", v[0], v[1], v[2])
}

func (v *vecFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	return nil
}
