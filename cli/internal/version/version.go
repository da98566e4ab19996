// Package version holds the CLI version string. Default is "dev"; release
// builds can set it via: go build -ldflags "-X commitgen/cli/internal/version.Version=v1.0.0"
// Commit is the short (7-char) git commit hash for dev builds; set by Makefile.
package version

// Version is the commitgen CLI version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash (e.g. 7 chars). Set at build time for dev builds via ldflags.
var Commit = ""

// String returns the version string for display (e.g. --version, history records).
// For dev builds with Commit set, returns "dev (abc1234)"; otherwise returns Version.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// UserAgent is the User-Agent sent to the model server.
func UserAgent() string {
	if Version == "dev" && Commit != "" {
		return "commitgen/dev-" + Commit
	}
	return "commitgen/" + Version
}
