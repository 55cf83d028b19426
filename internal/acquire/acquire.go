package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/hostbench/internal/logging"
)

// ErrIntegrityMismatch is returned when a download does not match the
// manifest digest.
var ErrIntegrityMismatch = errors.New("host archive integrity mismatch")

// StampFile marks a fully installed release directory.
const StampFile = ".verified"

// Host is an installed host release ready to launch.
type Host struct {
	Version string `json:"version"`
	// Home is the release root and the host's working directory.
	Home       string `json:"home"`
	Executable string `json:"executable"`
	// Cached is true when no download was needed.
	Cached bool `json:"cached"`
}

// Config configures an Acquirer.
type Config struct {
	// Manifest is a local path or http(s) URL of the version manifest.
	Manifest string
	CacheDir string
	// Client is used for http(s) downloads. Defaults to a pooled
	// go-cleanhttp client.
	Client    *http.Client
	Logger    *slog.Logger
	UserAgent string
}

// Acquirer resolves and installs host releases.
// It is safe for concurrent use.
type Acquirer struct {
	manifest  string
	cacheDir  string
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	group     singleflight.Group
}

// New creates an Acquirer.
func New(cfg Config) (*Acquirer, error) {
	if cfg.Manifest == "" {
		return nil, errors.New("acquire: manifest location is required")
	}
	if cfg.CacheDir == "" {
		return nil, errors.New("acquire: cache directory is required")
	}
	a := &Acquirer{
		manifest:  cfg.Manifest,
		cacheDir:  cfg.CacheDir,
		client:    cfg.Client,
		logger:    cfg.Logger,
		userAgent: cfg.UserAgent,
	}
	if a.client == nil {
		a.client = cleanhttp.DefaultPooledClient()
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	if a.userAgent == "" {
		a.userAgent = "hostbench"
	}
	return a, nil
}

// LoadManifest fetches and parses the version manifest.
func (a *Acquirer) LoadManifest(ctx context.Context) (*Manifest, error) {
	rc, err := a.open(ctx, a.manifest)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return ParseManifest(data)
}

// Acquire resolves spec against the manifest and installs the release if it
// is not cached yet.
func (a *Acquirer) Acquire(ctx context.Context, spec string) (Host, error) {
	m, err := a.LoadManifest(ctx)
	if err != nil {
		return Host{}, err
	}
	rel, err := m.Resolve(spec)
	if err != nil {
		return Host{}, err
	}
	return a.Ensure(ctx, rel)
}

// Ensure installs rel into the cache unless a verified copy is present.
// Concurrent calls for one version share a single installation.
func (a *Acquirer) Ensure(ctx context.Context, rel Release) (Host, error) {
	v, err, shared := a.group.Do(rel.Version, func() (any, error) {
		return a.ensure(ctx, rel)
	})
	if err != nil {
		return Host{}, err
	}
	h := v.(Host)
	if shared {
		a.logger.Debug("joined in-flight host install", "version", rel.Version)
	}
	return h, nil
}

// VersionDir returns the cache directory of a version.
func (a *Acquirer) VersionDir(version string) string {
	return filepath.Join(a.cacheDir, version)
}

func (a *Acquirer) hostFor(rel Release, cached bool) Host {
	home := a.VersionDir(rel.Version)
	return Host{
		Version:    rel.Version,
		Home:       home,
		Executable: filepath.Join(home, filepath.FromSlash(rel.Executable)),
		Cached:     cached,
	}
}

// verified reports whether dir holds a complete install of rel.
func verified(dir string, rel Release) bool {
	stamp, err := os.ReadFile(filepath.Join(dir, StampFile))
	if err != nil || strings.TrimSpace(string(stamp)) != rel.SHA256 {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rel.Executable)))
	return err == nil
}

func (a *Acquirer) ensure(ctx context.Context, rel Release) (Host, error) {
	final := a.VersionDir(rel.Version)
	if verified(final, rel) {
		a.logger.Debug("host cache hit", "version", rel.Version, "home", final)
		return a.hostFor(rel, true), nil
	}
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return Host{}, fmt.Errorf("create cache dir: %w", err)
	}

	src, err := resolveRef(a.manifest, rel.URL)
	if err != nil {
		return Host{}, err
	}
	a.logger.Info("downloading host", "version", rel.Version, "url", src)

	archive, err := a.download(ctx, src, rel.SHA256)
	if err != nil {
		return Host{}, fmt.Errorf("host %s: %w", rel.Version, err)
	}
	defer os.Remove(archive)

	staging, err := os.MkdirTemp(a.cacheDir, ".staging-"+rel.Version+"-")
	if err != nil {
		return Host{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := a.install(archive, staging, rel); err != nil {
		return Host{}, fmt.Errorf("host %s: %w", rel.Version, err)
	}

	// Another process may have finished the same release while this one
	// was downloading. Its hosts may already be running from final.
	if verified(final, rel) {
		a.logger.Debug("host installed concurrently", "version", rel.Version)
		return a.hostFor(rel, true), nil
	}
	restored, err := a.moveAside(final, rel)
	if err != nil {
		return Host{}, err
	}
	if restored {
		a.logger.Debug("host installed concurrently", "version", rel.Version)
		return a.hostFor(rel, true), nil
	}
	if err := os.Rename(staging, final); err != nil {
		// Another process may have installed the same release first.
		if verified(final, rel) {
			a.logger.Debug("host installed concurrently", "version", rel.Version)
			return a.hostFor(rel, true), nil
		}
		return Host{}, fmt.Errorf("install host %s: %w", rel.Version, err)
	}

	a.logger.Info("host installed", "version", rel.Version, "home", final)
	return a.hostFor(rel, false), nil
}

// moveAside renames an unverified install out of final and deletes it.
// When the tree turns out to be verified after all, because another
// process completed it between the check and the rename, it is moved back
// and restored is true.
func (a *Acquirer) moveAside(final string, rel Release) (restored bool, err error) {
	if _, err := os.Lstat(final); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	trash, err := os.MkdirTemp(a.cacheDir, ".stale-"+rel.Version+"-")
	if err != nil {
		return false, fmt.Errorf("move stale install: %w", err)
	}
	defer os.RemoveAll(trash)

	aside := filepath.Join(trash, "install")
	if err := os.Rename(final, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("move stale install: %w", err)
	}
	if verified(aside, rel) && os.Rename(aside, final) == nil {
		return true, nil
	}
	a.logger.Info("removing stale host install", "version", rel.Version)
	return false, nil
}

// download copies src to a temp file in the cache dir and verifies its
// digest. The caller removes the returned file.
func (a *Acquirer) download(ctx context.Context, src, want string) (string, error) {
	rc, err := a.open(ctx, src)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(a.cacheDir, ".download-")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	h := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(tmp, h), rc)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", src, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: got sha256 %s, want %s", ErrIntegrityMismatch, got, want)
	}
	return tmp.Name(), nil
}

// install unpacks archive into dir, writes config files and the stamp.
func (a *Acquirer) install(archive, dir string, rel Release) error {
	if err := unpack(archive, rel.Archive, dir, rel.Executable); err != nil {
		return fmt.Errorf("unpack: %w", err)
	}

	exe := filepath.Join(dir, filepath.FromSlash(rel.Executable))
	info, err := os.Stat(exe)
	if err != nil {
		return fmt.Errorf("executable %s missing from release: %w", rel.Executable, err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		if err := os.Chmod(exe, info.Mode().Perm()|0o755); err != nil {
			return err
		}
	}

	for name, content := range rel.ConfigFiles {
		target := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write config %s: %w", name, err)
		}
	}

	return os.WriteFile(filepath.Join(dir, StampFile), []byte(rel.SHA256+"\n"), 0o644)
}
