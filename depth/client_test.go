package depth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testPromptID = "p-test-1"

// fakeComfy fakes the workflow server: upload, prompt, event stream,
// history, and artifact download.
type fakeComfy struct {
	t        *testing.T
	depthPNG []byte

	// onStream drives one event stream connection and returns when
	// the connection should close.
	onStream func(conn *websocket.Conn)

	mu sync.Mutex
	// noHistory hides finished jobs from the history endpoint.
	noHistory bool
	uploads   int
	prompts   int
	streams   int
	saveNode  string
	imageIn   string
}

func newFakeComfy(t *testing.T, depthPNG []byte, onStream func(conn *websocket.Conn)) (*fakeComfy, *httptest.Server) {
	t.Helper()
	f := &fakeComfy{t: t, depthPNG: depthPNG, onStream: onStream}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload/image", f.handleUpload)
	mux.HandleFunc("/prompt", f.handlePrompt)
	mux.HandleFunc("/ws", f.handleWS)
	mux.HandleFunc("/history/", f.handleHistory)
	mux.HandleFunc("/view", f.handleView)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeComfy) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		f.t.Errorf("upload: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if got := r.FormValue("subfolder"); got != "temp" {
		f.t.Errorf("upload subfolder = %q; want %q", got, "temp")
	}
	_, hdr, err := r.FormFile("image")
	if err != nil {
		f.t.Errorf("upload image field: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"name": hdr.Filename, "subfolder": "temp"})
}

func (f *fakeComfy) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   map[string]*workflowNode `json:"prompt"`
		ClientID string                   `json:"client_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("prompt body: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		f.t.Error("prompt carried no client_id")
	}
	f.mu.Lock()
	f.prompts++
	for id, node := range req.Prompt {
		switch node.ClassType {
		case "SaveImage":
			f.saveNode = id
		case "LoadImage":
			if s, ok := node.Inputs["image"].(string); ok {
				f.imageIn = s
			}
		}
	}
	f.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"prompt_id": testPromptID})
}

func (f *fakeComfy) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()
	if f.onStream != nil {
		f.onStream(conn)
	}
}

func (f *fakeComfy) handleHistory(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	saveNode := f.saveNode
	noHistory := f.noHistory
	f.mu.Unlock()
	if noHistory || saveNode == "" {
		// Nothing submitted yet; an empty object means no record.
		w.Write([]byte("{}"))
		return
	}
	entry := map[string]any{
		testPromptID: map[string]any{
			"outputs": map[string]any{
				saveNode: map[string]any{
					"images": []map[string]string{
						{"filename": "depth_00001_.png", "subfolder": "", "type": "output"},
					},
				},
			},
		},
	}
	json.NewEncoder(w).Encode(entry)
}

func (f *fakeComfy) handleView(w http.ResponseWriter, r *http.Request) {
	w.Write(f.depthPNG)
}

// finishStream reports progress on one node and then the null-node
// event that marks the graph as finished.
func finishStream(conn *websocket.Conn) {
	conn.WriteJSON(map[string]any{
		"type": "executing",
		"data": map[string]any{"node": "3", "prompt_id": testPromptID},
	})
	conn.WriteJSON(map[string]any{
		"type": "executing",
		"data": map[string]any{"node": nil, "prompt_id": testPromptID},
	})
	// Hold the connection until the client hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func grayPNG(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeInputPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	path := filepath.Join(dir, "in.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerate(t *testing.T) {
	fake, srv := newFakeComfy(t, grayPNG(t, 4, 2, 200), finishStream)
	input := writeInputPNG(t, t.TempDir())

	c := NewClient(Config{ServerURL: srv.URL})
	m, err := c.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if m.Width != 4 || m.Height != 2 {
		t.Fatalf("Generate() returned %dx%d; want 4x2", m.Width, m.Height)
	}
	if got := m.ColorAt(1, 1); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("color at (1,1) = %v; want red", got)
	}
	if got := m.Depth.GrayAt(1, 1).Y; got != 200 {
		t.Errorf("depth at (1,1) = %d; want 200", got)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.uploads != 1 || fake.prompts != 1 {
		t.Errorf("server saw %d uploads and %d prompts; want 1 and 1", fake.uploads, fake.prompts)
	}
	if fake.imageIn != "temp/in.png" {
		t.Errorf("workflow LoadImage input = %q; want %q", fake.imageIn, "temp/in.png")
	}
}

func TestGenerateUsesCache(t *testing.T) {
	fake, srv := newFakeComfy(t, grayPNG(t, 4, 2, 200), finishStream)
	dir := t.TempDir()
	input := writeInputPNG(t, dir)

	c := NewClient(Config{ServerURL: srv.URL, CacheDir: filepath.Join(dir, ".rgbd_cache")})
	first, err := c.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	second, err := c.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if second.Width != first.Width || second.Height != first.Height {
		t.Errorf("cached result is %dx%d; want %dx%d", second.Width, second.Height, first.Width, first.Height)
	}
	if got := second.Depth.GrayAt(2, 0).Y; got != 200 {
		t.Errorf("cached depth at (2,0) = %d; want 200", got)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.uploads != 1 {
		t.Errorf("server saw %d uploads; want 1 (second call should hit the cache)", fake.uploads)
	}
}

func TestGenerateJobError(t *testing.T) {
	_, srv := newFakeComfy(t, nil, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{
			"type": "execution_error",
			"data": map[string]any{"prompt_id": testPromptID, "exception_message": "boom"},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	input := writeInputPNG(t, t.TempDir())

	c := NewClient(Config{ServerURL: srv.URL})
	_, err := c.Generate(context.Background(), input)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("Generate() error = %v; want ErrJobFailed", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry the server's message", err)
	}
}

func TestGenerateServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	input := writeInputPNG(t, t.TempDir())

	c := NewClient(Config{ServerURL: srv.URL})
	_, err := c.Generate(context.Background(), input)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Generate() error = %v; want ErrProtocol", err)
	}
}

func TestGenerateWaitTimeout(t *testing.T) {
	// The stream stays silent, so the only way out is the deadline.
	fake, srv := newFakeComfy(t, nil, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	fake.mu.Lock()
	fake.noHistory = true
	fake.mu.Unlock()
	input := writeInputPNG(t, t.TempDir())

	c := NewClient(Config{
		ServerURL:         srv.URL,
		WaitTimeout:       100 * time.Millisecond,
		ReconnectAttempts: 1,
	})
	_, err := c.Generate(context.Background(), input)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("Generate() error = %v; want ErrWaitTimeout", err)
	}
}

func TestGenerateRecoversViaHistory(t *testing.T) {
	// The stream drops before any event, but the job's history shows
	// the finished output, so the result is fetched anyway.
	fake, srv := newFakeComfy(t, grayPNG(t, 4, 2, 96), func(conn *websocket.Conn) {
		conn.Close()
	})
	input := writeInputPNG(t, t.TempDir())

	c := NewClient(Config{ServerURL: srv.URL, ReconnectDelay: time.Millisecond})
	m, err := c.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := m.Depth.GrayAt(0, 0).Y; got != 96 {
		t.Errorf("depth at (0,0) = %d; want 96", got)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.streams != 1 {
		t.Errorf("client opened %d streams; want 1 before falling back to history", fake.streams)
	}
}

func TestWorkflowPatch(t *testing.T) {
	w, err := loadWorkflow()
	if err != nil {
		t.Fatalf("loadWorkflow() error = %v", err)
	}
	if _, ok := w.findNode("SaveImage"); !ok {
		t.Fatal("workflow template has no SaveImage node")
	}
	if err := w.setInputImage("temp/photo.png"); err != nil {
		t.Fatalf("setInputImage() error = %v", err)
	}
	id, _ := w.findNode("LoadImage")
	if got := w[id].Inputs["image"]; got != "temp/photo.png" {
		t.Errorf("LoadImage input = %v; want temp/photo.png", got)
	}
}
