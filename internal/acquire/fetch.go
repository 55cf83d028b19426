package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// resolveRef resolves a release URL against the manifest location, so
// manifests may name archives relative to themselves.
func resolveRef(base, ref string) (string, error) {
	if isRemote(ref) || filepath.IsAbs(ref) {
		return ref, nil
	}
	if strings.HasPrefix(ref, "file://") {
		return strings.TrimPrefix(ref, "file://"), nil
	}
	if isRemote(base) {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse manifest url: %w", err)
		}
		r, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parse release url: %w", err)
		}
		return b.ResolveReference(r).String(), nil
	}
	return filepath.Join(filepath.Dir(strings.TrimPrefix(base, "file://")), filepath.FromSlash(ref)), nil
}

// open returns a reader for a local path or http(s) URL.
func (a *Acquirer) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !isRemote(src) {
		f, err := os.Open(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", src, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d: %s", src, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
