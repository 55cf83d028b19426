package acquire

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestAcquirer(t *testing.T, manifest string) (*Acquirer, string) {
	t.Helper()
	cache := filepath.Join(t.TempDir(), "cache")
	a, err := New(Config{Manifest: manifest, CacheDir: cache})
	require.NoError(t, err)
	return a, cache
}

func TestNew_RequiresLocations(t *testing.T) {
	_, err := New(Config{CacheDir: "x"})
	assert.Error(t, err)
	_, err = New(Config{Manifest: "x"})
	assert.Error(t, err)
}

func TestAcquire_HTTPDownloadThenCacheHit(t *testing.T) {
	archive := hostRelease(t)
	srv := newReleaseServer(t, map[string][]byte{"/host-7.1.tar.gz": archive})
	manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
		Version:     "7.1",
		URL:         srv.URL + "/host-7.1.tar.gz",
		SHA256:      digest(archive),
		Archive:     ArchiveTarGz,
		Executable:  "bin/host",
		ConfigFiles: map[string]string{"host.ini": "[general]\nportable=1\n"},
	}}})
	a, cache := newTestAcquirer(t, manifestPath)
	ctx := context.Background()

	h, err := a.Acquire(ctx, "7.1")
	require.NoError(t, err)
	assert.False(t, h.Cached)
	assert.Equal(t, "7.1", h.Version)
	assert.Equal(t, filepath.Join(cache, "7.1"), h.Home)
	assert.Equal(t, filepath.Join(cache, "7.1", "bin", "host"), h.Executable)

	info, err := os.Stat(h.Executable)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit kept")

	ini, err := os.ReadFile(filepath.Join(h.Home, "host.ini"))
	require.NoError(t, err)
	assert.Equal(t, "[general]\nportable=1\n", string(ini))

	stamp, err := os.ReadFile(filepath.Join(h.Home, StampFile))
	require.NoError(t, err)
	assert.Equal(t, digest(archive)+"\n", string(stamp))

	again, err := a.Acquire(ctx, "latest")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, h.Executable, again.Executable)
	assert.EqualValues(t, 1, srv.Hits("/host-7.1.tar.gz"))

	leftovers, err := filepath.Glob(filepath.Join(cache, ".*-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "no staging or download files remain")
}

func TestAcquire_RelativeURLNextToLocalManifest(t *testing.T) {
	dir := t.TempDir()
	archive := xzBytes(t, buildTar(t, []tarEntry{{name: "host", body: "bin", mode: 0o755}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host-8.0.tar.xz"), archive, 0o644))
	manifestPath := writeManifest(t, dir, Manifest{Versions: []Release{{
		Version: "8.0", URL: "host-8.0.tar.xz", SHA256: digest(archive), Archive: ArchiveTarXz, Executable: "host",
	}}})
	a, _ := newTestAcquirer(t, manifestPath)

	h, err := a.Acquire(context.Background(), "latest")
	require.NoError(t, err)
	data, err := os.ReadFile(h.Executable)
	require.NoError(t, err)
	assert.Equal(t, "bin", string(data))
}

func TestAcquire_RawExecutable(t *testing.T) {
	dir := t.TempDir()
	bin := []byte("\x7fELF-ish")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host.bin"), bin, 0o644))
	manifestPath := writeManifest(t, dir, Manifest{Versions: []Release{{
		Version: "1.0", URL: "host.bin", SHA256: digest(bin), Archive: ArchiveRaw, Executable: "bin/host",
	}}})
	a, _ := newTestAcquirer(t, manifestPath)

	h, err := a.Acquire(context.Background(), "1.0")
	require.NoError(t, err)
	info, err := os.Stat(h.Executable)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestAcquire_IntegrityMismatch(t *testing.T) {
	archive := hostRelease(t)
	srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive})
	manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
		Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest([]byte("something else")), Executable: "bin/host",
	}}})
	a, cache := newTestAcquirer(t, manifestPath)

	_, err := a.Acquire(context.Background(), "7.1")
	assert.ErrorIs(t, err, ErrIntegrityMismatch)
	assert.NoDirExists(t, filepath.Join(cache, "7.1"))

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquire_UnresolvedVersion(t *testing.T) {
	manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
		Version: "7.1", URL: "x", SHA256: sumA, Executable: "h",
	}}})
	a, _ := newTestAcquirer(t, manifestPath)

	_, err := a.Acquire(context.Background(), "9.9")
	assert.ErrorIs(t, err, ErrUnresolvedVersion)
}

func TestAcquire_MissingExecutable(t *testing.T) {
	archive := gzipBytes(t, buildTar(t, []tarEntry{{name: "README", body: "no binary"}}))
	srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive})
	manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
		Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest(archive), Executable: "bin/host",
	}}})
	a, cache := newTestAcquirer(t, manifestPath)

	_, err := a.Acquire(context.Background(), "7.1")
	assert.ErrorContains(t, err, "missing from release")
	assert.NoDirExists(t, filepath.Join(cache, "7.1"))
}

func TestAcquire_RejectsEscapingEntries(t *testing.T) {
	tests := map[string][]tarEntry{
		"dotdot path":   {{name: "../evil", body: "x"}},
		"absolute link": {{name: "link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"}},
		"escaping link": {{name: "sub/link", typeflag: tar.TypeSymlink, linkname: "../../outside"}},
	}
	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			archive := gzipBytes(t, buildTar(t, entries))
			srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive})
			manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
				Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest(archive), Executable: "host",
			}}})
			a, _ := newTestAcquirer(t, manifestPath)

			_, err := a.Acquire(context.Background(), "7.1")
			assert.ErrorContains(t, err, "escapes the release directory")
		})
	}
}

func TestAcquire_StaleInstallIsReplaced(t *testing.T) {
	archive := hostRelease(t)
	srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive})
	manifestPath := writeManifest(t, t.TempDir(), Manifest{Versions: []Release{{
		Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest(archive), Executable: "bin/host",
	}}})
	a, cache := newTestAcquirer(t, manifestPath)

	stale := filepath.Join(cache, "7.1")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, StampFile), []byte(sumA+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "junk"), []byte("old"), 0o644))

	h, err := a.Acquire(context.Background(), "7.1")
	require.NoError(t, err)
	assert.False(t, h.Cached)
	assert.FileExists(t, h.Executable)
	assert.NoFileExists(t, filepath.Join(stale, "junk"))

	leftovers, err := filepath.Glob(filepath.Join(cache, ".stale-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEnsure_SlowInstallKeepsVerifiedCopy(t *testing.T) {
	archive := hostRelease(t)
	srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive, "/mirror/h.tar.gz": archive})
	release := srv.Hold("/mirror/h.tar.gz")
	fast := Release{Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest(archive), Archive: ArchiveTarGz, Executable: "bin/host"}
	slow := fast
	slow.URL = srv.URL + "/mirror/h.tar.gz"

	cache := filepath.Join(t.TempDir(), "cache")
	first, err := New(Config{Manifest: srv.URL + "/manifest.yaml", CacheDir: cache})
	require.NoError(t, err)
	second, err := New(Config{Manifest: srv.URL + "/manifest.yaml", CacheDir: cache})
	require.NoError(t, err)
	ctx := context.Background()

	type result struct {
		host Host
		err  error
	}
	done := make(chan result, 1)
	go func() {
		h, err := second.Ensure(ctx, slow)
		done <- result{h, err}
	}()
	require.Eventually(t, func() bool { return srv.Hits("/mirror/h.tar.gz") == 1 }, 5*time.Second, 10*time.Millisecond)

	h, err := first.Ensure(ctx, fast)
	require.NoError(t, err)
	assert.False(t, h.Cached)
	inUse := filepath.Join(h.Home, "in-use")
	require.NoError(t, os.WriteFile(inUse, []byte("running"), 0o644))

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.host.Cached)
	assert.Equal(t, h.Executable, res.host.Executable)
	assert.FileExists(t, inUse, "verified install left in place")

	leftovers, err := filepath.Glob(filepath.Join(cache, ".*-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestMoveAside_RestoresVerifiedInstall(t *testing.T) {
	a, cache := newTestAcquirer(t, "unused")
	rel := Release{Version: "7.1", SHA256: sumA, Executable: "bin/host"}
	final := filepath.Join(cache, "7.1")
	require.NoError(t, os.MkdirAll(filepath.Join(final, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(final, "bin", "host"), []byte("x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(final, StampFile), []byte(sumA+"\n"), 0o644))

	restored, err := a.moveAside(final, rel)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.FileExists(t, filepath.Join(final, "bin", "host"))

	require.NoError(t, os.Remove(filepath.Join(final, StampFile)))
	restored, err = a.moveAside(final, rel)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.NoDirExists(t, final)

	restored, err = a.moveAside(final, rel)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestEnsure_ConcurrentResolvesDownloadOnce(t *testing.T) {
	archive := hostRelease(t)
	srv := newReleaseServer(t, map[string][]byte{"/h.tar.gz": archive})
	rel := Release{Version: "7.1", URL: srv.URL + "/h.tar.gz", SHA256: digest(archive), Archive: ArchiveTarGz, Executable: "bin/host"}
	a, _ := newTestAcquirer(t, srv.URL+"/manifest.yaml")

	var g errgroup.Group
	homes := make([]string, 8)
	for i := range homes {
		g.Go(func() error {
			h, err := a.Ensure(context.Background(), rel)
			homes[i] = h.Home
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, home := range homes {
		assert.Equal(t, homes[0], home)
	}
	assert.EqualValues(t, 1, srv.Hits("/h.tar.gz"))
}

func TestLoadManifest_HTTP(t *testing.T) {
	body := []byte("versions:\n  - version: '2.0'\n    url: host.tar.gz\n    sha256: " + sumA + "\n    executable: host\n")
	srv := newReleaseServer(t, map[string][]byte{"/hosts/manifest.yaml": body})
	a, _ := newTestAcquirer(t, srv.URL+"/hosts/manifest.yaml")

	m, err := a.LoadManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2.0"}, m.VersionList())

	missing, _ := newTestAcquirer(t, srv.URL+"/nope.yaml")
	_, err = missing.LoadManifest(context.Background())
	assert.ErrorContains(t, err, "unexpected status 404")
}
