package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
	"github.com/Blameying/M3U8-Downloader/internal/infra/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lg, err := logger.New("", logger.LevelError, false)
	if err != nil {
		t.Fatal(err)
	}
	return lg
}

func testDownloader(t *testing.T) *Downloader {
	dl := New(testLogger(t), nil, 5*time.Second)
	dl.Quiet = true
	return dl
}

// segmentServer serves canned segment bodies and records every request.
type segmentServer struct {
	mu       sync.Mutex
	bodies   map[string]string
	failWith map[string]int // path -> status code
	requests []*http.Request
}

func newSegmentServer(names ...string) *segmentServer {
	s := &segmentServer{
		bodies:   make(map[string]string),
		failWith: make(map[string]int),
	}
	for _, n := range names {
		s.bodies[n] = "content of " + n
	}
	return s
}

func (s *segmentServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")

		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(context.Background()))
		code, fail := s.failWith[name]
		body, ok := s.bodies[name]
		s.mu.Unlock()

		if fail {
			w.WriteHeader(code)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *segmentServer) requestsFor(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.TrimPrefix(r.URL.Path, "/") == name {
			n++
		}
	}
	return n
}

func writePlaylist(t *testing.T, names ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, n := range names {
		b.WriteString("#EXTINF:10.0,\n")
		b.WriteString(n)
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")

	path := filepath.Join(t.TempDir(), "index.m3u8")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_DownloadsAllSegments(t *testing.T) {
	names := []string{"seg1.ts", "seg2.ts", "seg3.ts"}
	server := newSegmentServer(names...)
	srv := server.start(t)

	dest := t.TempDir()
	rec, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       dest,
		Workers:      1,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Scheduled != 3 || rec.Written != 3 || rec.Failed != 0 {
		t.Errorf("Expected 3 scheduled/3 written/0 failed, got %d/%d/%d", rec.Scheduled, rec.Written, rec.Failed)
	}

	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dest, n))
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", n, err)
		}
		if string(data) != "content of "+n {
			t.Errorf("Expected canned body for %s, got %q", n, data)
		}
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected exactly 3 files in dest, got %d", len(entries))
	}
}

func TestRun_ManyWorkers(t *testing.T) {
	var names []string
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("seg%03d.ts", i))
	}
	server := newSegmentServer(names...)
	srv := server.start(t)

	dest := t.TempDir()
	rec, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       dest,
		Workers:      6,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Written != 20 {
		t.Errorf("Expected 20 written, got %d", rec.Written)
	}

	for _, n := range names {
		if got := server.requestsFor(n); got != 1 {
			t.Errorf("Expected exactly 1 request for %s, got %d", n, got)
		}
	}
}

func TestRun_ResumeSkipsExistingFiles(t *testing.T) {
	names := []string{"seg1.ts", "seg2.ts", "seg3.ts"}
	server := newSegmentServer(names...)
	srv := server.start(t)

	dest := t.TempDir()
	// seg2 pre-exists from an earlier, interrupted run
	if err := os.WriteFile(filepath.Join(dest, "seg2.ts"), []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       dest,
		Workers:      2,
		Resume:       true,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Scheduled != 2 || rec.Skipped != 1 {
		t.Errorf("Expected 2 scheduled/1 skipped, got %d/%d", rec.Scheduled, rec.Skipped)
	}
	if got := server.requestsFor("seg2.ts"); got != 0 {
		t.Errorf("Expected no request for the pre-existing segment, got %d", got)
	}

	data, err := os.ReadFile(filepath.Join(dest, "seg2.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "already here" {
		t.Errorf("Expected the pre-existing file to be untouched, got %q", data)
	}
}

func TestRun_ResumeWithNothingLeft(t *testing.T) {
	names := []string{"seg1.ts", "seg2.ts"}
	server := newSegmentServer(names...)
	srv := server.start(t)

	dest := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dest, n), []byte("done"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       dest,
		Workers:      4,
		Resume:       true,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Status != domain.StatusCompleted {
		t.Errorf("Expected completed status, got %s", rec.Status)
	}
	if rec.Scheduled != 0 || rec.Written != 0 {
		t.Errorf("Expected nothing scheduled, got %d scheduled / %d written", rec.Scheduled, rec.Written)
	}
	if len(server.requests) != 0 {
		t.Errorf("Expected no requests at all, got %d", len(server.requests))
	}
}

func TestRun_HeadersAttachedToEveryRequest(t *testing.T) {
	names := []string{"seg1.ts", "seg2.ts", "seg3.ts"}
	server := newSegmentServer(names...)
	srv := server.start(t)

	_, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       t.TempDir(),
		Workers:      3,
		Headers: []domain.HeaderEntry{
			{Name: "Authorization", Value: "Bearer X"},
			{Name: "Referer", Value: "http://host/"},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.requests) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(server.requests))
	}
	for _, r := range server.requests {
		if got := r.Header.Get("Authorization"); got != "Bearer X" {
			t.Errorf("Expected Authorization header on %s, got %q", r.URL.Path, got)
		}
		if got := r.Header.Get("Referer"); got != "http://host/" {
			t.Errorf("Expected Referer header on %s, got %q", r.URL.Path, got)
		}
	}
}

func TestRun_SegmentFailureIsIsolated(t *testing.T) {
	var names []string
	for i := 0; i < 9; i++ {
		names = append(names, fmt.Sprintf("seg%03d.ts", i))
	}
	server := newSegmentServer(names...)
	server.failWith["seg004.ts"] = http.StatusNotFound
	srv := server.start(t)

	dest := t.TempDir()
	rec, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: writePlaylist(t, names...),
		BaseURL:      srv.URL + "/",
		OutDir:       dest,
		Workers:      3,
	})
	if err != nil {
		t.Fatalf("Expected the run to complete despite one failed segment, got %v", err)
	}

	if rec.Written != 8 || rec.Failed != 1 {
		t.Errorf("Expected 8 written/1 failed, got %d/%d", rec.Written, rec.Failed)
	}

	if _, err := os.Stat(filepath.Join(dest, "seg004.ts")); !os.IsNotExist(err) {
		t.Errorf("Expected the failed segment to be missing from dest")
	}
	for _, n := range names {
		if n == "seg004.ts" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dest, n)); err != nil {
			t.Errorf("Expected %s to exist: %v", n, err)
		}
	}

	// No retry: the failing segment was asked for exactly once
	if got := server.requestsFor("seg004.ts"); got != 1 {
		t.Errorf("Expected exactly 1 request for the failing segment, got %d", got)
	}
}

func TestRun_EmptyPlaylistIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.m3u8")
	if err := os.WriteFile(path, []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: path,
		BaseURL:      "http://host/",
		OutDir:       t.TempDir(),
		Workers:      1,
	})
	if err == nil {
		t.Fatal("Expected an error for an empty playlist")
	}
}

func TestRun_MissingPlaylistIsFatal(t *testing.T) {
	_, err := testDownloader(t).Run(context.Background(), domain.Job{
		PlaylistPath: filepath.Join(t.TempDir(), "nope.m3u8"),
		BaseURL:      "http://host/",
		OutDir:       t.TempDir(),
		Workers:      1,
	})
	if err == nil {
		t.Fatal("Expected an error for a missing playlist")
	}
}

func TestFilterExisting_Idempotent(t *testing.T) {
	dir := t.TempDir()
	list := []string{"a1.ts", "b2.ts", "c3.ts"}

	// Nothing on disk: list passes through unchanged
	once := filterExisting(dir, list)
	if len(once) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(once))
	}
	twice := filterExisting(dir, once)
	for i := range once {
		if twice[i] != once[i] {
			t.Errorf("Expected filtering to be idempotent at %d: %s != %s", i, twice[i], once[i])
		}
	}

	// Everything on disk: list filters to empty
	for _, n := range list {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if got := filterExisting(dir, list); len(got) != 0 {
		t.Errorf("Expected an empty list, got %v", got)
	}
}
