package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

// FS embeds the dashboard build output. dist holds only a placeholder until
// the dashboard is built into it.
//
//go:embed all:dist
var FS embed.FS

// GetHTTPFS returns the embedded dashboard for HTTP serving. It returns an
// fs.ErrNotExist error when no build is embedded.
func GetHTTPFS() (http.FileSystem, error) {
	sub, err := fs.Sub(FS, "dist")
	if err != nil {
		return nil, err
	}

	if _, err := fs.Stat(sub, "index.html"); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: "index.html", Err: fs.ErrNotExist}
	}

	return http.FS(sub), nil
}
