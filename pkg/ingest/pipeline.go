// Package ingest turns a compiled HTML help archive (or an already extracted
// directory) into corpus documents.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

const (
	// DefaultMinLength is the number of characters a page's trimmed text must
	// exceed to become a document.
	DefaultMinLength = 50

	pagePattern   = "**/*.[hH][tT][mM]*"
	extractSubdir = "chm_source"
	progressEvery = 10
)

// ProgressFunc receives pipeline progress. It is never called concurrently.
type ProgressFunc func(types.Progress)

type Pipeline struct {
	extractor   Extractor
	markup      string
	workDir     string
	minLength   int
	concurrency int
}

type Opt func(*Pipeline)

func WithExtractor(e Extractor) Opt {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// WithMarkup selects MarkupText or MarkupMarkdown.
func WithMarkup(markup string) Opt {
	return func(p *Pipeline) {
		p.markup = markup
	}
}

// WithWorkDir sets where archives are extracted. Defaults to a temporary
// directory removed when Run returns.
func WithWorkDir(dir string) Opt {
	return func(p *Pipeline) {
		p.workDir = dir
	}
}

func WithMinLength(n int) Opt {
	return func(p *Pipeline) {
		p.minLength = n
	}
}

func WithConcurrency(n int) Opt {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

func New(opts ...Opt) *Pipeline {
	p := &Pipeline{
		extractor:   SevenZip{},
		markup:      MarkupText,
		minLength:   DefaultMinLength,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run extracts source when it is a file, converts every HTML page below the
// extracted root and returns the pages with enough text, ordered by path.
func (p *Pipeline) Run(ctx context.Context, source string, progress ProgressFunc) ([]types.Document, error) {
	report := func(fraction float64, msg string) {
		if progress != nil {
			progress(types.Progress{Fraction: fraction, Message: msg})
		}
	}

	docs, err := p.run(ctx, source, report)
	if err != nil {
		report(0, "error: "+err.Error())
		return nil, err
	}
	return docs, nil
}

func (p *Pipeline) run(ctx context.Context, source string, report func(float64, string)) ([]types.Document, error) {
	convert, err := NewConverter(p.markup)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	root := source
	if !info.IsDir() {
		report(0.05, "extracting archive...")
		root, err = p.extract(ctx, source)
		if err != nil {
			return nil, err
		}
		if p.workDir == "" {
			defer os.RemoveAll(filepath.Dir(root))
		}
	}

	report(0.25, "analysing archive structure...")
	pages, err := doublestar.Glob(os.DirFS(root), pagePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	slog.Debug("Found pages", "root", root, "count", len(pages))

	report(0.35, "cleaning documents...")
	docs, err := p.convertAll(ctx, root, pages, convert, report)
	if err != nil {
		return nil, err
	}

	slog.Info("Ingested documents", "source", source, "pages", len(pages), "documents", len(docs))
	return docs, nil
}

func (p *Pipeline) extract(ctx context.Context, archive string) (string, error) {
	if p.extractor == nil {
		return "", fmt.Errorf("no extractor configured for %s", archive)
	}

	base := p.workDir
	if base == "" {
		tmp, err := os.MkdirTemp("", "rulelawyer-ingest-")
		if err != nil {
			return "", err
		}
		base = tmp
	}

	dest := filepath.Join(base, extractSubdir)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("cleaning %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	if err := p.extractor.Extract(ctx, archive, dest); err != nil {
		if p.workDir == "" {
			_ = os.RemoveAll(base)
		}
		return "", err
	}
	return dest, nil
}

func (p *Pipeline) convertAll(ctx context.Context, root string, pages []string, convert Converter, report func(float64, string)) ([]types.Document, error) {
	results := make([]*types.Document, len(pages))

	var (
		mu   sync.Mutex
		done int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.concurrency, 1))

	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := p.convertPage(root, page, convert)
			if err != nil {
				slog.Warn("Skipping page", "page", page, "error", err)
			} else {
				results[i] = doc
			}

			mu.Lock()
			defer mu.Unlock()
			if done%progressEvery == 0 {
				report(0.35+float64(done)/float64(len(pages))*0.4, "processing: "+path.Base(page))
			}
			done++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(pages))
	for _, d := range results {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	return docs, nil
}

// convertPage returns nil when the page holds too little text.
func (p *Pipeline) convertPage(root, page string, convert Converter) (*types.Document, error) {
	raw, err := fs.ReadFile(os.DirFS(root), page)
	if err != nil {
		return nil, err
	}

	text, err := convert(Decode(raw))
	if err != nil {
		return nil, fmt.Errorf("converting: %w", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= p.minLength {
		return nil, nil
	}

	stem := strings.TrimSuffix(path.Base(page), path.Ext(page))
	doc := types.NewDocument(page, stem, text)
	return &doc, nil
}
