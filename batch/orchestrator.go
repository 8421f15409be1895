package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/quilt"
	"github.com/stevecastle/depthcharge/rgbd"
)

// Source produces an RGBD image for one input file.
type Source interface {
	Generate(ctx context.Context, path string) (*rgbd.Image, error)
}

// Runner processes a directory of images into quilts. Files are
// visited in lexical order with exactly one inference in flight, and
// every outcome is committed to the Store before the next file starts,
// so a crash or cancellation never loses finished work.
type Runner struct {
	Store  *Store
	Source Source
	Quilt  quilt.Config
	OutDir string
}

// Run walks inDir and processes every image that is not already
// recorded as a success, then rebuilds the playlist. Per-file failures
// are recorded and skipped; only store corruption or cancellation
// aborts the pass.
func (r *Runner) Run(ctx context.Context, inDir string) error {
	if err := os.MkdirAll(r.OutDir, 0755); err != nil {
		return err
	}
	err := filepath.WalkDir(inDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".rgbd_cache" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isImageFile(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return r.processFile(ctx, path)
	})
	if err != nil {
		return err
	}
	return WritePlaylist(r.Store, r.OutDir)
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func (r *Runner) processFile(ctx context.Context, path string) error {
	rec, err := r.Store.Get(path)
	if err != nil {
		return err
	}
	if rec != nil && rec.Status == StatusSuccess {
		log.Debugf("skipping already processed file: %s", path)
		return nil
	}

	// A retried file keeps the name its first attempt claimed, so it
	// overwrites its own output instead of claiming a fresh suffix.
	base := ""
	if rec != nil {
		base = rec.Basename
	}
	if base == "" {
		if base, err = r.Store.SimpleName(path); err != nil {
			return err
		}
	}
	if err := r.Store.Ensure(path, base); err != nil {
		return err
	}

	log.Infof("processing %s -> %s", path, base)
	saved, err := r.renderFile(ctx, path, base)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Warnf("processing %s: %v", path, err)
		return r.Store.MarkFailed(path, base)
	}
	return r.Store.MarkSuccess(path, base, saved)
}

func (r *Runner) renderFile(ctx context.Context, path, base string) (string, error) {
	m, err := r.Source.Generate(ctx, path)
	if err != nil {
		return "", err
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	outPath := filepath.Join(r.OutDir, base+"."+ext)

	cfg := r.Quilt
	cfg.Caption.Text = expandCaption(cfg.Caption.Text, path)
	return quilt.Generate(m, outPath, cfg, false)
}

// expandCaption substitutes "{}" in a caption template with the input
// file's stem.
func expandCaption(template, path string) string {
	if template == "" {
		return ""
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(template, "{}", stem)
}
