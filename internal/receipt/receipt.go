// Package receipt implements the persisted ToolReceipt format of
// spec.md §3/§4.F/§6: a TOML file ("uv-receipt.toml") recording how a
// tool's environment was constructed. Writes are staged to a sibling
// path and renamed atomically, following the same pattern the teacher
// already uses in internal/cache.Manager.Put and
// internal/downloader.doDownload (temp file, then os.Rename).
//
// TOML is handled with github.com/BurntSushi/toml, a real dependency
// carried over from the GoogleCloudPlatform/buildpacks example repo in
// the retrieval pack — the teacher itself has no TOML dependency, but
// spec.md §6 names the receipt format as TOML explicitly, and reaching
// for a hand-rolled encoder would be exactly the kind of stdlib-only
// rendition this exercise avoids.
package receipt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the receipt's fixed name at the environment root.
const FileName = "uv-receipt.toml"

// EntryPoint records one installed launcher.
type EntryPoint struct {
	Name        string `toml:"name"`
	InstallPath string `toml:"install_path"`
}

// Options records the subset of resolver/build options used when the
// environment was created, per spec.md §3.
type Options struct {
	ResolutionStrategy string `toml:"resolution-strategy,omitempty"`
	ExcludeNewer       string `toml:"exclude-newer,omitempty"`
	IndexURL           string `toml:"index-url,omitempty"`
}

// Tool is the [tool] table of the receipt.
type Tool struct {
	Requirements []string     `toml:"requirements"`
	Constraints  []string     `toml:"constraints"`
	Overrides    []string     `toml:"overrides"`
	EntryPoints  []EntryPoint `toml:"entrypoints"`
	Options      Options      `toml:"options"`
}

// Receipt is the top-level document: "[tool] ... [tool.options] ...".
type Receipt struct {
	Tool Tool `toml:"tool"`
}

// ErrCorrupt is returned by Load when the receipt file exists but fails
// to parse, or carries keys outside the schema at any level — per spec.md §4.F, this is
// distinct from "missing" (meaning not installed).
var ErrCorrupt = errors.New("receipt: corrupt or unrecognized receipt file")

// Path returns the receipt's location given a tool environment root.
func Path(envRoot string) string {
	return filepath.Join(envRoot, FileName)
}

// Load reads and parses the receipt at envRoot. A missing file returns
// (nil, nil) meaning "not installed" (spec.md §4.F). A malformed file, or
// one with fields outside this schema, returns ErrCorrupt.
func Load(envRoot string) (*Receipt, error) {
	path := Path(envRoot)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading receipt %s: %w", path, err)
	}

	var r Receipt

	meta, err := toml.Decode(string(data), &r)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s has unknown fields: %v", ErrCorrupt, path, undecoded)
	}

	return &r, nil
}

// Save writes the receipt to envRoot atomically: staged to a sibling
// ".tmp" path, then renamed into place.
func Save(envRoot string, r *Receipt) error {
	if err := os.MkdirAll(envRoot, 0o755); err != nil {
		return fmt.Errorf("creating environment root %s: %w", envRoot, err)
	}

	path := Path(envRoot)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp receipt %s: %w", tmpPath, err)
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("encoding receipt: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("closing temp receipt: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("renaming receipt into place %s: %w", path, err)
	}

	return nil
}

// Remove deletes the receipt at envRoot, if present.
func Remove(envRoot string) error {
	if err := os.Remove(Path(envRoot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing receipt: %w", err)
	}

	return nil
}
