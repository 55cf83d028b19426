package acquire

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Size:     int64(len(e.body)),
			Typeflag: e.typeflag,
			Linkname: e.linkname,
		}
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hostRelease returns a tar.gz release containing bin/host and a readme.
func hostRelease(t *testing.T) []byte {
	return gzipBytes(t, buildTar(t, []tarEntry{
		{name: "bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "bin/host", body: "#!/bin/sh\nexit 0\n", mode: 0o755},
		{name: "README", body: "simulated host"},
	}))
}

func writeManifest(t *testing.T, dir string, m Manifest) string {
	t.Helper()
	data, err := yaml.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// releaseServer serves files by path and counts requests per path.
type releaseServer struct {
	*httptest.Server
	files map[string][]byte
	hits  map[string]*atomic.Int64
	holds map[string]chan struct{}
}

func newReleaseServer(t *testing.T, files map[string][]byte) *releaseServer {
	t.Helper()
	s := &releaseServer{files: files, hits: make(map[string]*atomic.Int64), holds: make(map[string]chan struct{})}
	for p := range files {
		s.hits[p] = &atomic.Int64{}
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := s.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.hits[r.URL.Path].Add(1)
		if hold, ok := s.holds[r.URL.Path]; ok {
			<-hold
		}
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *releaseServer) Hits(path string) int64 {
	return s.hits[path].Load()
}

// Hold delays responses for path until the returned channel is closed.
// Call it before the first request.
func (s *releaseServer) Hold(path string) chan struct{} {
	ch := make(chan struct{})
	s.holds[path] = ch
	return ch
}
