package batch

import (
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stevecastle/depthcharge/quilt"
	"github.com/stevecastle/depthcharge/rgbd"
)

type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeSource) Generate(ctx context.Context, path string) (*rgbd.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[path]++
	if f.fail[path] {
		return nil, errors.New("inference unavailable")
	}

	c := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	d := image.NewGray(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c.SetNRGBA(x, y, color.NRGBA{R: 200, A: 255})
			d.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return &rgbd.Image{Width: 4, Height: 2, Color: c, Depth: d}, nil
}

func (f *fakeSource) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func testQuiltConfig(t *testing.T) quilt.Config {
	t.Helper()
	bg, err := quilt.ParseBackground("black")
	if err != nil {
		t.Fatal(err)
	}
	return quilt.Config{
		Profile:    quilt.Profile{Name: "test", Columns: 2, Rows: 1, Width: 8, Height: 4},
		FovDeg:     60,
		Zoom:       1.05,
		Scale:      1,
		Resize:     1,
		Background: bg,
	}
}

func newTestRunner(t *testing.T) (*Runner, *fakeSource, string, string) {
	t.Helper()
	root := t.TempDir()
	inDir := filepath.Join(root, "pics")
	outDir := filepath.Join(root, "quilts")
	if err := os.MkdirAll(inDir, 0755); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", filepath.Join(inDir, "index.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	src := &fakeSource{}
	return &Runner{
		Store:  store,
		Source: src,
		Quilt:  testQuiltConfig(t),
		OutDir: outDir,
	}, src, inDir, outDir
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("stand-in image bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunnerProcessesDirectory(t *testing.T) {
	r, src, inDir, outDir := newTestRunner(t)
	a := writeInput(t, inDir, "a.jpg")
	b := writeInput(t, inDir, "b.png")
	writeInput(t, inDir, "notes.txt") // not an image, ignored
	cacheDir := filepath.Join(inDir, ".rgbd_cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, cacheDir, "decoy.png") // cache contents are not inputs

	if err := r.Run(context.Background(), inDir); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, name := range []string{"a_qs2x1a2.00.jpg", "b_qs2x1a2.00.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected quilt %s: %v", name, err)
		}
	}
	if src.count(a) != 1 || src.count(b) != 1 {
		t.Errorf("source calls = %d, %d; want 1, 1", src.count(a), src.count(b))
	}
	if n := src.count(filepath.Join(cacheDir, "decoy.png")); n != 0 {
		t.Errorf("cache decoy was processed %d times", n)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(outDir), "quilts.m3u"))
	if err != nil {
		t.Fatalf("reading playlist: %v", err)
	}
	want := "quilts/a_qs2x1a2.00.jpg\nquilts/b_qs2x1a2.00.png\n"
	if string(data) != want {
		t.Errorf("playlist = %q; want %q", data, want)
	}
	if strings.HasPrefix(string(data), "#EXTM3U") {
		t.Error("playlist carries the #EXTM3U header")
	}
}

func TestRunnerResumeSkipsFinishedWork(t *testing.T) {
	r, src, inDir, _ := newTestRunner(t)
	a := writeInput(t, inDir, "a.jpg")
	b := writeInput(t, inDir, "b.jpg")

	if err := r.Run(context.Background(), inDir); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := r.Run(context.Background(), inDir); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if src.count(a) != 1 || src.count(b) != 1 {
		t.Errorf("source calls after resume = %d, %d; want 1, 1 (success records skip)", src.count(a), src.count(b))
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	r, src, inDir, outDir := newTestRunner(t)
	a := writeInput(t, inDir, "a.jpg")
	b := writeInput(t, inDir, "b.jpg")
	c := writeInput(t, inDir, "c.jpg")
	src.fail = map[string]bool{b: true}

	if err := r.Run(context.Background(), inDir); err != nil {
		t.Fatalf("Run() error = %v; one bad file must not abort the pass", err)
	}

	rec, err := r.Store.Get(b)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Status != StatusFailed {
		t.Fatalf("record for failing file = %+v; want failed", rec)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(outDir), "quilts.m3u"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "b_") {
		t.Errorf("playlist %q contains the failed file", data)
	}

	// The failed file is retried next pass; the finished ones are not.
	src.fail = nil
	if err := r.Run(context.Background(), inDir); err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if src.count(a) != 1 || src.count(b) != 2 || src.count(c) != 1 {
		t.Errorf("source calls after retry = %d, %d, %d; want 1, 2, 1",
			src.count(a), src.count(b), src.count(c))
	}
	rec, _ = r.Store.Get(b)
	if rec.Status != StatusSuccess {
		t.Errorf("record after retry = %+v; want success", rec)
	}
}

func TestRunnerCanceledContext(t *testing.T) {
	r, src, inDir, outDir := newTestRunner(t)
	a := writeInput(t, inDir, "a.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, inDir); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if src.count(a) != 0 {
		t.Errorf("canceled run still called the source %d times", src.count(a))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(outDir), "quilts.m3u")); err == nil {
		t.Error("canceled run wrote a playlist")
	}
}

func TestExpandCaption(t *testing.T) {
	tests := []struct {
		template string
		path     string
		expected string
	}{
		{"", "/pics/a.png", ""},
		{"hello", "/pics/a.png", "hello"},
		{"{}", "/pics/sun set.png", "sun set"},
		{"shot {} of 9", "/pics/beach.jpg", "shot beach of 9"},
	}

	for _, tt := range tests {
		if got := expandCaption(tt.template, tt.path); got != tt.expected {
			t.Errorf("expandCaption(%q, %q) = %q; want %q", tt.template, tt.path, got, tt.expected)
		}
	}
}
