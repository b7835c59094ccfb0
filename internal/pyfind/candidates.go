package pyfind

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bilusteknoloji/pymodule/internal/version"
)

// candidate is one unqueried executable path paired with its source tag.
type candidate struct {
	path string
	src  Source
}

// candidateSources enumerates candidates in the deterministic order of
// spec.md §4.C: parent interpreter, then virtualenv-likely sources, then
// base conda, then installed sources ordered by PythonPreference.
func (f *Finder) candidateSources(req Request) []candidate {
	var out []candidate

	if parent := f.getenv("PYMODULE_INTERNAL__PARENT_INTERPRETER"); parent != "" {
		out = append(out, candidate{path: parent, src: SourceParentInterpreter})
	}

	if venv := f.getenv("VIRTUAL_ENV"); venv != "" {
		out = append(out, candidate{path: filepath.Join(venv, "bin", "python3"), src: SourceActiveEnvironment})
	}

	if conda := f.getenv("CONDA_PREFIX"); conda != "" {
		out = append(out, candidate{path: filepath.Join(conda, "bin", "python3"), src: SourceCondaPrefix})
	}

	if discovered, ok := f.discoverVenvUpward(); ok {
		out = append(out, candidate{path: discovered, src: SourceDiscoveredEnvironment})
	}

	if base := f.getenv("CONDA_DEFAULT_ENV"); base != "" && base != "base" {
		if root := f.getenv("CONDA_PREFIX"); root != "" {
			out = append(out, candidate{path: filepath.Join(filepath.Dir(filepath.Dir(root)), "bin", "python3"), src: SourceBaseCondaPrefix})
		}
	}

	out = append(out, f.installedCandidates(req)...)

	return out
}

// discoverVenvUpward walks upward from the working directory looking for
// a pyvenv.cfg marker file, per spec.md §4.C.
func (f *Finder) discoverVenvUpward() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}

	for {
		marker := filepath.Join(dir, "pyvenv.cfg")
		if _, err := os.Stat(marker); err == nil {
			return filepath.Join(dir, "bin", "python3"), true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}

		dir = parent
	}
}

// installedCandidates scans each installed-interpreter source named by
// sourceOrder, in order.
func (f *Finder) installedCandidates(req Request) []candidate {
	var out []candidate

	for _, src := range sourceOrder(f.pythonPreference) {
		switch src {
		case SourceSearchPath:
			out = append(out, f.scanPath(req)...)
		case SourceManaged:
			out = append(out, f.scanManaged(req)...)
		case SourceRegistry, SourceMicrosoftStore:
			// Windows-only sources; this engine targets POSIX first,
			// matching the teacher's Linux/macOS-only cmd/pymodule
			// platform handling (wheelPlatform/expandPlatform).
		}
	}

	return out
}

// scanPath walks PATH, tagging the first directory's python3 as
// SourceSearchPathFirst, and additionally scans each directory for
// python3.X/python3.Xt files matching the request's minor window.
func (f *Finder) scanPath(req Request) []candidate {
	pathVar := f.getenv("PYMODULE_TEST_PYTHON_PATH")
	if pathVar == "" {
		pathVar = f.getenv("PATH")
	}

	dirs := strings.Split(pathVar, string(os.PathListSeparator))

	var out []candidate

	names := executableNames(req)

	for i, dir := range dirs {
		if dir == "" {
			continue
		}

		for _, name := range names {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err != nil {
				continue
			}

			src := SourceSearchPath
			if i == 0 {
				src = SourceSearchPathFirst
			}

			out = append(out, candidate{path: p, src: src})
		}

		out = append(out, f.scanPathDirForVersioned(dir, req)...)
	}

	return out
}

// scanPathDirForVersioned lists dir for python3.X/python3.Xt files,
// pre-filtering by the request's minor window before they are ever
// queried (spec.md §8 scenario 6: "python3.8 is never queried").
func (f *Finder) scanPathDirForVersioned(dir string, req Request) []candidate {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []candidate

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		minor, freethreaded, ok := minorFromFilename(e.Name())
		if !ok {
			continue
		}

		if req.Version.Variant == version.VariantFreethreaded && !freethreaded {
			continue
		}

		if req.Version.Variant != version.VariantFreethreaded && freethreaded {
			continue
		}

		// python3.X filenames always imply major version 3.
		if req.Kind == RequestVersion && !inMinorWindow(req.Version, 3, minor) {
			continue
		}

		out = append(out, candidate{path: filepath.Join(dir, e.Name()), src: SourceSearchPath})
	}

	return out
}

// scanManaged looks under PYMODULE_TOOL_DIR's sibling "pythons" directory
// for managed interpreter installations, a minimal stand-in for a real
// toolchain manager (out of scope per spec.md §1's non-goals around
// executing arbitrary installers).
func (f *Finder) scanManaged(req Request) []candidate {
	root := f.getenv("PYMODULE_TOOL_DIR")
	if root == "" {
		return nil
	}

	managedDir := filepath.Join(filepath.Dir(root), "pythons")

	entries, err := os.ReadDir(managedDir)
	if err != nil {
		return nil
	}

	var out []candidate

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		p := filepath.Join(managedDir, e.Name(), "bin", "python3")
		if _, err := os.Stat(p); err != nil {
			continue
		}

		out = append(out, candidate{path: p, src: SourceManaged})
	}

	return out
}
