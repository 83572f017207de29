package policyopa

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cryptoinfra "attestd/internal/infra/crypto"
)

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHashFromPath identifies a policy bundle by the digest of its
// .rego and data.json files. Editor leftovers and archives do not count.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(bundlePath), ".")
}

func ComputeBundleHashFromFS(fsys fs.FS, root string) (string, error) {
	files, err := collectBundleFiles(fsys, root)
	if err != nil {
		return "", err
	}
	return cryptoinfra.DigestCanonical(struct {
		Files []bundleFile `json:"files"`
	}{Files: files})
}

func collectBundleFiles(fsys fs.FS, root string) ([]bundleFile, error) {
	files := []bundleFile{}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") || base == "__MACOSX" || base == "vendor" {
				return fs.SkipDir
			}
			return nil
		}
		if !isPolicyFile(base) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, bundleFile{
			Path:   filepath.ToSlash(path),
			SHA256: cryptoinfra.SHA256Hex(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func isPolicyFile(base string) bool {
	if strings.HasPrefix(base, ".") {
		return false
	}
	return base == "data.json" || strings.HasSuffix(base, ".rego")
}
