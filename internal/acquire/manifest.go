package acquire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hostbench/internal/hostversion"
)

// ErrUnresolvedVersion is returned when a version descriptor matches no
// manifest entry.
var ErrUnresolvedVersion = errors.New("unresolved host version")

// Archive is the packaging format of a release download.
type Archive string

const (
	ArchiveTarGz Archive = "tar.gz"
	ArchiveTarXz Archive = "tar.xz"
	ArchiveRaw   Archive = "raw"
)

// Release is one downloadable host version.
type Release struct {
	Version string  `yaml:"version"`
	URL     string  `yaml:"url"`
	SHA256  string  `yaml:"sha256"`
	Archive Archive `yaml:"archive"`
	// Executable is the host binary's path inside the unpacked tree.
	Executable string `yaml:"executable"`
	// ConfigFiles are written into the unpacked tree after extraction,
	// keyed by relative path.
	ConfigFiles map[string]string `yaml:"config_files,omitempty"`
}

// Manifest lists the known releases.
type Manifest struct {
	Versions []Release `yaml:"versions"`
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]bool, len(m.Versions))
	for i := range m.Versions {
		r := &m.Versions[i]
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		if seen[r.Version] {
			return nil, fmt.Errorf("manifest entry %d: duplicate version %q", i, r.Version)
		}
		seen[r.Version] = true
	}
	return &m, nil
}

func (r *Release) validate() error {
	if !hostversion.Valid(r.Version) {
		return fmt.Errorf("invalid version %q", r.Version)
	}
	if r.URL == "" {
		return fmt.Errorf("version %s: url is required", r.Version)
	}
	r.SHA256 = strings.ToLower(r.SHA256)
	if b, err := hex.DecodeString(r.SHA256); err != nil || len(b) != 32 {
		return fmt.Errorf("version %s: sha256 must be 64 hex characters", r.Version)
	}
	if r.Archive == "" {
		r.Archive = ArchiveTarGz
	}
	switch r.Archive {
	case ArchiveTarGz, ArchiveTarXz, ArchiveRaw:
	default:
		return fmt.Errorf("version %s: unknown archive format %q", r.Version, r.Archive)
	}
	if !localPath(r.Executable) {
		return fmt.Errorf("version %s: executable %q must be a relative path inside the release", r.Version, r.Executable)
	}
	for name := range r.ConfigFiles {
		if !localPath(name) {
			return fmt.Errorf("version %s: config file %q must be a relative path inside the release", r.Version, name)
		}
	}
	return nil
}

// VersionList returns every listed version in manifest order.
func (m *Manifest) VersionList() []string {
	out := make([]string, len(m.Versions))
	for i, r := range m.Versions {
		out[i] = r.Version
	}
	return out
}

// Resolve picks the release for a version descriptor: "latest" selects the
// highest version, anything else must equal a listed version exactly.
func (m *Manifest) Resolve(spec string) (Release, error) {
	spec = strings.TrimSpace(spec)
	if spec == hostversion.Latest {
		best := hostversion.Max(m.VersionList())
		for _, r := range m.Versions {
			if r.Version == best {
				return r, nil
			}
		}
		return Release{}, fmt.Errorf("%w: %q: manifest lists no versions", ErrUnresolvedVersion, spec)
	}
	for _, r := range m.Versions {
		if r.Version == spec {
			return r, nil
		}
	}
	return Release{}, fmt.Errorf("%w: %q", ErrUnresolvedVersion, spec)
}

// localPath reports whether p is a non-empty relative path that stays
// inside its root.
func localPath(p string) bool {
	if p == "" || path.IsAbs(p) || filepath.IsAbs(p) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
