package planner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bilusteknoloji/pymodule/internal/requirement"
	"github.com/bilusteknoloji/pymodule/internal/version"
)

// ScanManifest builds a Manifest by reading the *.dist-info/METADATA files
// under sitePackages, the same directories internal/installer writes RECORD
// and entry-point data into during an install.
func ScanManifest(sitePackages string) (Manifest, error) {
	entries, err := os.ReadDir(sitePackages)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}

		return nil, fmt.Errorf("reading site-packages %s: %w", sitePackages, err)
	}

	manifest := make(Manifest)

	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dist-info") {
			continue
		}

		pkg, ok, err := readDistInfo(filepath.Join(sitePackages, e.Name()))
		if err != nil {
			return nil, err
		}

		if ok {
			manifest[requirement.NormalizeName(pkg.Name)] = pkg
		}
	}

	return manifest, nil
}

// readDistInfo parses the Name/Version header fields out of a
// dist-info directory's METADATA file.
func readDistInfo(distInfoDir string) (InstalledPackage, bool, error) {
	f, err := os.Open(filepath.Join(distInfoDir, "METADATA"))
	if err != nil {
		if os.IsNotExist(err) {
			return InstalledPackage{}, false, nil
		}

		return InstalledPackage{}, false, fmt.Errorf("opening %s/METADATA: %w", distInfoDir, err)
	}
	defer func() { _ = f.Close() }()

	var name, rawVersion string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break // end of header block
		}

		switch {
		case strings.HasPrefix(line, "Name:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Version:"):
			rawVersion = strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		}
	}

	if err := scanner.Err(); err != nil {
		return InstalledPackage{}, false, fmt.Errorf("reading %s/METADATA: %w", distInfoDir, err)
	}

	if name == "" || rawVersion == "" {
		return InstalledPackage{}, false, nil
	}

	v, err := version.Parse(rawVersion)
	if err != nil {
		return InstalledPackage{}, false, nil
	}

	return InstalledPackage{Name: name, Version: v}, true, nil
}
