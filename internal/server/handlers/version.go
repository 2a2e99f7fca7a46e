package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/gstcheck/gstcheck/internal/appid"
)

// BuildInfo is injected from main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Commit      string `json:"git_commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler returns a handler reporting build and dependency versions.
// environment is the IRAS environment the server talks to.
func VersionHandler(info BuildInfo, environment string) http.HandlerFunc {
	if info.Version == "" {
		info.Version = "dev"
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		deps := crucible.GetVersion()
		writeJSON(w, http.StatusOK, VersionResponse{
			App: AppInfo{
				Name:        appid.BinaryName,
				Version:     info.Version,
				Commit:      info.Commit,
				BuildDate:   info.BuildDate,
				GoVersion:   runtime.Version(),
				Environment: environment,
			},
			Dependencies: DepInfo{
				Gofulmen: deps.Gofulmen,
				Crucible: deps.Crucible,
			},
			Runtime: RuntimeInfo{
				Platform:      runtime.GOOS + "/" + runtime.GOARCH,
				NumCPU:        runtime.NumCPU(),
				NumGoroutines: runtime.NumGoroutine(),
			},
		})
	}
}
