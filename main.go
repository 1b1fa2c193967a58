// sqlconv converts annotated SQL documents into script or JSON artifacts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/sqlconv/internal/config"
	"github.com/phobologic/sqlconv/internal/convert"
	"github.com/phobologic/sqlconv/internal/discover"
	"github.com/phobologic/sqlconv/internal/emit"
	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
	"github.com/phobologic/sqlconv/internal/router"
	"github.com/phobologic/sqlconv/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", report.Render(err))
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("sqlconv", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		emitter     string
		indent      int
		output      string
		include     string
		configPath  string
		strict      bool
		lint        bool
		verbose     bool
		quiet       bool
		showVersion bool
	)

	fs.StringVar(&emitter, "e", "", "emitter: "+strings.Join(emit.Names(), ", "))
	fs.StringVar(&emitter, "emitter", "", "emitter: "+strings.Join(emit.Names(), ", "))
	fs.IntVar(&indent, "indent", 0, "spaces per nesting level of JSON output")
	fs.StringVar(&output, "o", "", "output path, overriding the document header")
	fs.StringVar(&output, "output", "", "output path, overriding the document header")
	fs.StringVar(&include, "include", "", "glob of documents to convert in directory mode")
	fs.StringVar(&configPath, "config", "", "config file (default ./"+config.FileName+")")
	fs.BoolVar(&strict, "strict", false, "fail on lines that are not comments, group tags or statements")
	fs.BoolVar(&lint, "lint", false, "warn about statements the SQL grammar cannot parse")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&quiet, "q", false, "do not print the manifest")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "sqlconv %s\n", version)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "e", "emitter":
			cfg.Emitter = emitter
		case "indent":
			cfg.Indent = indent
		case "o", "output":
			cfg.Output = output
		case "include":
			cfg.Include = include
		case "strict":
			cfg.Strict = strict
		case "lint":
			cfg.Lint = lint
		case "v":
			if verbose {
				cfg.LogLevel = "debug"
			}
		}
	})

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing document path")
	}
	target := fs.Arg(0)

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("document path: %w", err)
	}

	opts := convert.Options{
		Emitter: cfg.Emitter,
		Indent:  cfg.Indent,
		Output:  cfg.Output,
		Strict:  cfg.Strict,
		Lint:    cfg.Lint,
		Logger:  logger,
		Claims:  new(router.Claims),
	}

	docs := []string{target}
	if info.IsDir() {
		rel, err := discover.Documents(target, cfg.Include)
		if err != nil {
			return fmt.Errorf("discovering documents: %w", err)
		}
		if len(rel) == 0 {
			return fmt.Errorf("no documents matching %q in %s", cfg.Include, target)
		}
		docs = docs[:0]
		for _, r := range rel {
			docs = append(docs, filepath.Join(target, filepath.FromSlash(r)))
		}
	}

	var manifests []*model.Manifest
	for _, doc := range docs {
		m, err := convert.File(doc, opts)
		if err != nil {
			return err
		}
		logger.Info("converted", "document", doc, "artifacts", len(m.Artifacts))
		manifests = append(manifests, m)
	}

	if !quiet {
		_, _ = fmt.Fprintln(stdout, toon.EncodeAll(manifests))
	}
	return nil
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-e": true, "--e": true,
	"-emitter": true, "--emitter": true,
	"-indent": true, "--indent": true,
	"-o": true, "--o": true,
	"-output": true, "--output": true,
	"-include": true, "--include": true,
	"-config": true, "--config": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
