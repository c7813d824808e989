package main

import (
	"io/fs"
	"os"
)

// staticAssets opens the dashboard asset directory. The server runs
// fine without one; page shells are rendered server side and only the
// script bundles live here.
func staticAssets() (fs.FS, error) {
	dir := os.Getenv("STATIC_DIR")
	if dir == "" {
		dir = "./web/static"
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return os.DirFS(dir), nil
}
