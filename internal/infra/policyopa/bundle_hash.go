package policyopa

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vizpilot/internal/infra/crypto"
)

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHash hashes the policy files of a bundle directory so the
// evaluated policy version can be recorded alongside results.
func ComputeBundleHash(path string) (string, error) {
	return ComputeBundleHashFS(os.DirFS(path))
}

func ComputeBundleHashFS(fsys fs.FS) (string, error) {
	var files []bundleFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != "." && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !isPolicyFile(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, bundleFile{Path: filepath.ToSlash(path), SHA256: crypto.SHA256Hex(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return crypto.ContentHash(files)
}

func isPolicyFile(name string) bool {
	return strings.HasSuffix(name, ".rego") || name == "data.json"
}
