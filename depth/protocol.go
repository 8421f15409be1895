package depth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// uploadImage posts the file to the server's upload endpoint and
// returns the server-side path of the stored copy.
func (c *Client) uploadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := filepath.Base(path)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.WriteField("subfolder", "temp"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	log.Debugf("uploading image %s to %s/upload/image", name, c.cfg.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+"/upload/image", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrProtocol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: upload returned %s", ErrProtocol, resp.Status)
	}

	var uploaded struct {
		Name      string `json:"name"`
		Subfolder string `json:"subfolder"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("%w: upload response: %v", ErrProtocol, err)
	}
	if uploaded.Name == "" {
		uploaded.Name = name
	}
	if uploaded.Subfolder != "" {
		uploaded.Name = uploaded.Subfolder + "/" + uploaded.Name
	}
	log.Debugf("uploaded image path: %s", uploaded.Name)
	return uploaded.Name, nil
}

// submit queues the workflow and returns the prompt id the server
// assigned. A server that cannot be reached fails the job here; there
// is nothing to wait on.
func (c *Client) submit(ctx context.Context, w workflow) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt":    w,
		"client_id": c.clientID,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %v", ErrProtocol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: submit returned %s", ErrProtocol, resp.Status)
	}

	var queued struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("%w: submit response: %v", ErrProtocol, err)
	}
	if queued.PromptID == "" {
		return "", fmt.Errorf("%w: submit response missing prompt_id", ErrProtocol)
	}
	log.Debugf("workflow queued with prompt id %s", queued.PromptID)
	return queued.PromptID, nil
}

// wsURL derives the event stream address from the server URL.
func (c *Client) wsURL() string {
	return strings.Replace(c.cfg.ServerURL, "http", "ws", 1) + "/ws?clientId=" + url.QueryEscape(c.clientID)
}

// wait watches the server's event stream until the job finishes. A
// dropped stream is reopened a bounded number of times, checking the
// job history in between in case the result landed while the stream
// was down. The whole wait shares one deadline.
func (c *Client) wait(ctx context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		err := c.watchStream(ctx, j)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrJobFailed) {
			return err
		}
		if ctx.Err() != nil {
			return waitErr(ctx)
		}
		// The job may have finished while the stream was down.
		if done, herr := c.historyDone(ctx, j.id); herr == nil && done {
			return nil
		}
		lastErr = err
		if attempt < c.cfg.ReconnectAttempts {
			log.Warnf("depth event stream dropped, retrying in %v (attempt %d/%d): %v",
				c.cfg.ReconnectDelay, attempt, c.cfg.ReconnectAttempts, err)
			select {
			case <-ctx.Done():
				return waitErr(ctx)
			case <-time.After(c.cfg.ReconnectDelay):
			}
		}
	}
	if ctx.Err() != nil {
		return waitErr(ctx)
	}
	return fmt.Errorf("%w: event stream lost after %d attempts: %v", ErrProtocol, c.cfg.ReconnectAttempts, lastErr)
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}
	return ctx.Err()
}

type wsEvent struct {
	Type string `json:"type"`
	Data struct {
		Node             *string `json:"node"`
		PromptID         string  `json:"prompt_id"`
		ExceptionMessage string  `json:"exception_message"`
	} `json:"data"`
}

// watchStream opens one event stream connection and reads it until the
// job reaches a terminal event or the stream breaks.
func (c *Client) watchStream(ctx context.Context, j *job) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dialing event stream: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	if j.state != StateWaiting {
		j.transition(StateWaiting)
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}
		if kind != websocket.TextMessage {
			// Binary preview frames are not used.
			continue
		}
		var ev wsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debugf("skipping unparseable event: %v", err)
			continue
		}
		if ev.Data.PromptID != "" && ev.Data.PromptID != j.id {
			continue
		}
		switch ev.Type {
		case "executing":
			if ev.Data.Node == nil {
				// A null node means the whole graph finished.
				return nil
			}
			log.Debugf("depth job %s executing node %s", j.id, *ev.Data.Node)
		case "execution_error":
			if ev.Data.ExceptionMessage != "" {
				return fmt.Errorf("%w: %s", ErrJobFailed, ev.Data.ExceptionMessage)
			}
			return ErrJobFailed
		}
	}
}

type historyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []historyImage `json:"images"`
	} `json:"outputs"`
}

// history fetches the server's record for one prompt id. A nil entry
// means the job has not finished yet.
func (c *Client) history(ctx context.Context, promptID string) (*historyEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrProtocol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: history returned %s", ErrProtocol, resp.Status)
	}

	var entries map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: history response: %v", ErrProtocol, err)
	}
	e, ok := entries[promptID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *Client) historyDone(ctx context.Context, promptID string) (bool, error) {
	e, err := c.history(ctx, promptID)
	if err != nil {
		return false, err
	}
	return e != nil && len(e.Outputs) > 0, nil
}

// fetchOutput downloads the first image the save node produced.
func (c *Client) fetchOutput(ctx context.Context, promptID, saveNode string) (image.Image, error) {
	e, err := c.history(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: no history for prompt %s", ErrProtocol, promptID)
	}
	out, ok := e.Outputs[saveNode]
	if !ok || len(out.Images) == 0 {
		return nil, fmt.Errorf("%w: prompt %s produced no images", ErrProtocol, promptID)
	}
	artifact := out.Images[0]

	q := url.Values{}
	q.Set("filename", artifact.Filename)
	q.Set("subfolder", artifact.Subfolder)
	q.Set("type", artifact.Type)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+"/view?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: view: %v", ErrProtocol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: view returned %s", ErrProtocol, resp.Status)
	}

	decoded, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding depth artifact %s: %w", artifact.Filename, err)
	}
	return decoded, nil
}
