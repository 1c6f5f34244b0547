package version

import "runtime"

var (
	version = "v0.1.0"
	// gitCommit is the git sha1 + dirty if build from a dirty git, set with -ldflags
	gitCommit = "none"
	// ubuntuRelease is the installer release the bundled template targets
	ubuntuRelease = "20.04"
)

func GetVersion() string {
	return version
}

// BuildInfo describes the compiled time information.
type BuildInfo struct {
	// Version is the current semver.
	Version string `json:"version,omitempty"`
	// GitCommit is the git sha1.
	GitCommit string `json:"git_commit,omitempty"`
	// GoVersion is the version of the Go compiler used.
	GoVersion string `json:"go_version,omitempty"`
	// UbuntuRelease is the installer release of the bundled template.
	UbuntuRelease string `json:"ubuntu_release,omitempty"`
}

// Get returns build info
func Get() BuildInfo {
	return BuildInfo{
		Version:       GetVersion(),
		GitCommit:     gitCommit,
		GoVersion:     runtime.Version(),
		UbuntuRelease: ubuntuRelease,
	}
}
