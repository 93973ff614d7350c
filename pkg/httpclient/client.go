package httpclient

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/docker/rulelawyer/pkg/version"
)

var UserAgent = fmt.Sprintf("Rulelawyer/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

type userAgentTransport struct {
	agent string
	rt    http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", u.agent)
	return u.rt.RoundTrip(r2)
}

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

type Opt func(*options)

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.timeout = d
	}
}

func WithTransport(rt http.RoundTripper) Opt {
	return func(o *options) {
		o.transport = rt
	}
}

func NewHTTPClient(opts ...Opt) *http.Client {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	return &http.Client{
		Timeout: o.timeout,
		Transport: &userAgentTransport{
			agent: UserAgent,
			rt:    o.transport,
		},
	}
}
