package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	_ "embed"
)

const Name = "webproxy"

//go:embed VERSION
var rawVersion []byte

// Set with -ldflags "-X github.com/looplj/webproxy/internal/build.Version=...".
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

var startTime = time.Now()

//nolint:gochecknoinits // resolve the version once.
func init() {
	if Version == "" {
		Version = strings.TrimSpace(string(rawVersion))
	}

	if Commit != "" && BuildTime != "" {
		return
	}

	// go build stamps the VCS state into the binary.
	if bi, ok := debug.ReadBuildInfo(); ok {
		Commit, BuildTime = fromVCS(bi.Settings, Commit, BuildTime)
	}
}

func fromVCS(settings []debug.BuildSetting, commit, buildTime string) (string, string) {
	dirty := false

	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" {
				commit = s.Value
			}
		case "vcs.time":
			if buildTime == "" {
				buildTime = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if dirty && commit != "" && !strings.HasSuffix(commit, "-dirty") {
		commit += "-dirty"
	}

	return commit, buildTime
}

// UserAgent is sent on requests the server makes, such as probes.
func UserAgent() string {
	return Name + "/" + Version
}

type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

func GetBuildInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    time.Since(startTime).Truncate(time.Second).String(),
	}
}

func (i Info) String() string {
	rows := [][2]string{
		{"Name", i.Name},
		{"Version", i.Version},
		{"Commit", i.Commit},
		{"Build Time", i.BuildTime},
		{"Go Version", i.GoVersion},
		{"Platform", i.Platform},
		{"Uptime", i.Uptime},
	}

	var sb strings.Builder

	for _, row := range rows {
		if row[1] == "" {
			continue
		}

		fmt.Fprintf(&sb, "%-11s %s\n", row[0]+":", row[1])
	}

	return sb.String()
}
