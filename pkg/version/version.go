package version

// Set at build time with -ldflags "-X github.com/docker/rulelawyer/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
)
