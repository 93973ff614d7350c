package root

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/fake"
)

// recordFlags route model API traffic through a VCR cassette.
type recordFlags struct {
	recordPath string
	fakePath   string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fakePath, "fake", "", "Replay model responses from a cassette file (for testing)")
	cmd.Flags().StringVar(&f.recordPath, "record", "", "Record model API interactions to a cassette file")
	cmd.Flags().Lookup("record").NoOptDefVal = "true"
	cmd.MarkFlagsMutuallyExclusive("fake", "record")
}

// transport returns the cassette transport, or nil when neither flag is set.
// The cleanup function writes a recorded cassette and must always be called.
func (f *recordFlags) transport() (http.RoundTripper, func(), error) {
	path, record := f.fakePath, false
	if f.recordPath != "" {
		path, record = f.recordPath, true
		if path == "true" {
			path = fmt.Sprintf("%s-recording-%d", AppName, time.Now().Unix())
		}
	}
	if path == "" {
		return nil, func() {}, nil
	}
	path = strings.TrimSuffix(path, ".yaml")

	rec, err := fake.NewRecorder(path, record)
	if err != nil {
		return nil, nil, err
	}

	if record {
		slog.Info("Recording mode enabled", "cassette", path+".yaml")
	} else {
		slog.Info("Fake mode enabled", "cassette", path+".yaml")
	}

	return rec, func() {
		if err := rec.Stop(); err != nil {
			slog.Error("Failed to save cassette", "cassette", path+".yaml", "error", err)
		}
	}, nil
}
