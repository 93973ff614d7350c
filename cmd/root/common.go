package root

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/docker/rulelawyer/pkg/app"
	"github.com/docker/rulelawyer/pkg/userconfig"
)

// openApp loads the settings and opens the application. The returned close
// function releases the stores and saves a recorded cassette.
func (f *rootFlags) openApp(ctx context.Context, rec *recordFlags, opts ...app.Opt) (*app.App, *userconfig.Settings, func(), error) {
	settings, err := f.loadSettings()
	if err != nil {
		return nil, nil, nil, err
	}

	stopRecording := func() {}
	if rec != nil {
		rt, stop, err := rec.transport()
		if err != nil {
			return nil, nil, nil, err
		}
		stopRecording = stop
		if rt != nil {
			opts = append(opts, app.WithTransport(rt))
		}
	}
	if f.enableOtel {
		opts = append(opts, app.WithTracer(otel.Tracer(AppName)))
	}

	a, err := app.Open(ctx, settings, opts...)
	if err != nil {
		stopRecording()
		return nil, nil, nil, err
	}

	return a, settings, func() {
		_ = a.Close()
		stopRecording()
	}, nil
}
