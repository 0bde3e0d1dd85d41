// Package files defines the upload directory layout shared by the interview
// pipeline and resolves download requests by file name.
package files

import (
	"os"
	"path/filepath"
)

// Layout groups the directories the service writes into.
type Layout struct {
	Root    string
	Audio   string
	Reports string
	Jobs    string
}

// NewLayout derives the directory layout from the upload root.
func NewLayout(root string) Layout {
	if root == "" {
		root = "./uploads"
	}
	interviewRoot := filepath.Join(root, "interview")
	return Layout{
		Root:    root,
		Audio:   filepath.Join(interviewRoot, "audio"),
		Reports: filepath.Join(interviewRoot, "reports"),
		Jobs:    filepath.Join(root, "job_descriptions"),
	}
}

// Ensure creates every directory in the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Audio, l.Reports, l.Jobs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Resolve locates a previously generated file by bare name inside the
// downloadable directories. The name is reduced to its base so a crafted path
// cannot escape the layout.
func (l Layout) Resolve(name string) (string, bool) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}

	for _, dir := range []string{l.Reports} {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}
