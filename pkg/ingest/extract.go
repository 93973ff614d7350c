package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultSevenZip is the archive tool looked up on PATH when none is
// configured.
const DefaultSevenZip = "7z"

// Extractor unpacks an archive into dest.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) error
}

// SevenZip extracts archives by running the 7-Zip command line tool, which
// understands compiled HTML help files.
type SevenZip struct {
	Binary string
}

func (s SevenZip) Extract(ctx context.Context, archive, dest string) error {
	bin := s.Binary
	if bin == "" {
		bin = DefaultSevenZip
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("archive tool %q not found: %w", bin, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "x", archive, "-o"+dest, "-y")
	cmd.Stderr = &stderr

	slog.Debug("Extracting archive", "tool", bin, "archive", archive, "dest", dest)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("extracting %s: %w: %s", archive, err, msg)
		}
		return fmt.Errorf("extracting %s: %w", archive, err)
	}
	return nil
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, archive, dest string) error

func (f ExtractorFunc) Extract(ctx context.Context, archive, dest string) error {
	return f(ctx, archive, dest)
}
