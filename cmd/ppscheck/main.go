// Command ppscheck reads PPS attestations from local files and prints the
// extracted fields, optionally checking them against a declared identity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/ppsverify/internal/config"
	"github.com/Lllllllleong/ppsverify/internal/document"
	"github.com/Lllllllleong/ppsverify/internal/extraction"
	"github.com/Lllllllleong/ppsverify/internal/logger"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/services"
	"github.com/Lllllllleong/ppsverify/internal/validation"
)

type options struct {
	surname     string
	givenName   string
	birthDate   string
	concurrency int
	showText    bool
}

type report struct {
	File       string                          `json:"file"`
	Type       string                          `json:"contentType,omitempty"`
	TextSource string                          `json:"textSource,omitempty"`
	Fields     *models.ExtractedDocumentFields `json:"fields,omitempty"`
	Tiers      map[string]int                  `json:"tiers,omitempty"`
	Validation *validation.Outcome             `json:"validation,omitempty"`
	Text       string                          `json:"text,omitempty"`
	Error      string                          `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("ppscheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	v := viper.New()
	if err := config.BindFlags(fs, v); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	var opts options
	fs.StringVar(&opts.surname, "surname", "", "Declared surname to check against")
	fs.StringVar(&opts.givenName, "given-name", "", "Declared given name to check against")
	fs.StringVar(&opts.birthDate, "birth-date", "", "Declared birth date (YYYY-MM-DD or DD/MM/YYYY)")
	fs.IntVarP(&opts.concurrency, "concurrency", "j", 2, "Number of files processed at once")
	fs.BoolVar(&opts.showText, "show-text", false, "Include the recognized text in the output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ppscheck [flags] FILE...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	slog.SetDefault(logger.New(stderr, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	inspector, closers, err := services.NewInspectorOrTextOnly(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	reports := check(ctx, inspector, cfg, opts, fs.Args())

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	code := 0
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if r.Error != "" || (r.Validation != nil && !r.Validation.Accepted) {
			code = 1
		}
	}
	return code
}

// check inspects every file and returns the reports in argument order.
func check(ctx context.Context, inspector *services.Inspector, cfg *config.Config, opts options, files []string) []report {
	reports := make([]report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))

	for i, file := range files {
		g.Go(func() error {
			reports[i] = checkFile(gctx, inspector, cfg, opts, file)
			// Per-file failures are reported, not propagated.
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func checkFile(ctx context.Context, inspector *services.Inspector, cfg *config.Config, opts options, file string) report {
	r := report{File: file}
	logCtx := slog.With("file", file)

	data, err := os.ReadFile(file)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if err := document.CheckSize(int64(len(data)), cfg.MaxFileSize); err != nil {
		r.Error = err.Error()
		return r
	}
	ct, err := document.DetectContentType("", filepath.Base(file), data)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Type = ct

	insp, err := inspector.Inspect(ctx, data, ct)
	if err != nil {
		logCtx.Warn("Inspection failed", "error", err)
		r.Error = err.Error()
		return r
	}
	r.TextSource = insp.TextSource
	r.Fields = &insp.Fields
	r.Tiers = tierNames(insp.Trace)
	if opts.showText {
		r.Text = insp.Text
	}

	if declared, ok := declaredIdentity(opts); ok {
		outcome := validation.Validate(insp.Fields, declared)
		r.Validation = &outcome
	}
	return r
}

func declaredIdentity(opts options) (models.DeclaredIdentity, bool) {
	d := models.DeclaredIdentity{
		Surname:   opts.surname,
		GivenName: opts.givenName,
		BirthDate: extraction.NormalizeDate(opts.birthDate),
	}
	return d, !d.IsZero()
}

func tierNames(t extraction.Trace) map[string]int {
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]int, len(t))
	for f, tier := range t {
		out[f.String()] = tier
	}
	return out
}
