// Package depth generates depth maps for color images by driving a
// remote ComfyUI style workflow server. The caller hands it a file
// path; it uploads the image, queues an inference workflow, waits on
// the server's event stream, and fetches the finished depth artifact,
// returning the pair as an RGBD image. Results are cached on disk so a
// file is only inferred once per server.
package depth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/imgio"
	"github.com/stevecastle/depthcharge/rgbd"
)

var (
	// ErrProtocol indicates the server answered in a way the client
	// does not understand, or could not be reached at all.
	ErrProtocol = errors.New("depth server protocol error")
	// ErrJobFailed indicates the server reported an execution error
	// for the submitted workflow.
	ErrJobFailed = errors.New("depth job failed")
	// ErrWaitTimeout indicates the job did not finish within the
	// configured wait window.
	ErrWaitTimeout = errors.New("timed out waiting for depth job")
)

const (
	// DefaultServerURL is where a local ComfyUI instance listens.
	DefaultServerURL = "http://127.0.0.1:8188"
	// DefaultWaitTimeout bounds the whole wait for one inference job.
	DefaultWaitTimeout = 5 * time.Minute
	// DefaultReconnectAttempts is how many times the event stream is
	// opened before the job is abandoned.
	DefaultReconnectAttempts = 3
	// DefaultReconnectDelay is the pause before reopening a dropped
	// event stream.
	DefaultReconnectDelay = 5 * time.Second
)

// Config points a Client at a workflow server.
type Config struct {
	// ServerURL is the HTTP base URL of the server.
	ServerURL string
	// CacheDir holds side-by-side RGBD composites keyed by input
	// hash. Empty disables caching.
	CacheDir string
	// WaitTimeout bounds the wait for one job. Zero means
	// DefaultWaitTimeout.
	WaitTimeout time.Duration
	// ReconnectAttempts is how many event stream connections are
	// tried per job. Zero means DefaultReconnectAttempts.
	ReconnectAttempts int
	// ReconnectDelay is the pause between attempts. Zero means
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration
}

// Client submits depth inference jobs to a workflow server.
type Client struct {
	cfg      Config
	http     *http.Client
	clientID string
}

// NewClient returns a Client for the given server, filling unset
// config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{},
		clientID: uuid.NewString(),
	}
}

// job tracks one inference exchange through its states.
type job struct {
	id    string
	state State
}

func (j *job) transition(to State) {
	log.Debugf("depth job %q: %s -> %s", j.id, j.state, to)
	j.state = to
}

// Generate produces an RGBD image for the file at path, delegating
// depth estimation to the remote server. The color plane carries the
// file's EXIF orientation, and the returned depth plane is oriented to
// match it.
func (c *Client) Generate(ctx context.Context, path string) (*rgbd.Image, error) {
	var key string
	if c.cfg.CacheDir != "" {
		k, err := cacheKey(path, c.cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		key = k
		if m, ok := readCache(c.cfg.CacheDir, key); ok {
			return m, nil
		}
		log.Debugf("no cached RGBD image for %s, generating", path)
	}

	orientation := imgio.ReadOrientation(path)
	raw, err := imgio.Load(path)
	if err != nil {
		return nil, err
	}
	colorImg := imgio.ApplyOrientation(imgio.ToNRGBA(raw), orientation)

	w, err := loadWorkflow()
	if err != nil {
		return nil, err
	}
	saveNode, ok := w.findNode("SaveImage")
	if !ok {
		return nil, fmt.Errorf("%w: workflow has no SaveImage node", ErrProtocol)
	}

	j := &job{state: StateIdle}

	uploaded, err := c.uploadImage(ctx, path)
	if err != nil {
		j.transition(StateFailed)
		return nil, err
	}
	if err := w.setInputImage(uploaded); err != nil {
		return nil, err
	}

	promptID, err := c.submit(ctx, w)
	if err != nil {
		j.transition(StateFailed)
		return nil, err
	}
	j.id = promptID
	j.transition(StateSubmitted)

	if err := c.wait(ctx, j); err != nil {
		j.transition(StateFailed)
		return nil, err
	}

	depthRaw, err := c.fetchOutput(ctx, promptID, saveNode)
	if err != nil {
		j.transition(StateFailed)
		return nil, err
	}
	j.transition(StateCompleted)

	depthImg := imgio.ApplyOrientation(imgio.ToNRGBA(depthRaw), orientation)
	m, err := rgbd.Compose(colorImg, depthImg)
	if err != nil {
		return nil, err
	}
	if c.cfg.CacheDir != "" {
		writeCache(c.cfg.CacheDir, key, m)
	}
	return m, nil
}
