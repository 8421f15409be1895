package depth

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/imgio"
	"github.com/stevecastle/depthcharge/rgbd"
)

// cacheKey hashes the input file contents together with the server URL,
// so a cached result is reused only for the same bytes against the same
// server.
func cacheKey(path, serverURL string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(serverURL))
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func cachePath(dir, key string) string {
	return filepath.Join(dir, key+"_rgbd.png")
}

// readCache loads a previously generated side-by-side composite, if one
// exists for key.
func readCache(dir, key string) (*rgbd.Image, bool) {
	path := cachePath(dir, key)
	img, err := imgio.Load(path)
	if err != nil {
		return nil, false
	}
	m, err := rgbd.Split(img)
	if err != nil {
		log.Warnf("ignoring malformed cache entry %s: %v", path, err)
		return nil, false
	}
	log.Debugf("loaded cached RGBD image from %s", path)
	return m, true
}

// writeCache stores the side-by-side composite for key. Cache writes are
// best effort; a failure only costs a re-inference next time.
func writeCache(dir, key string, m *rgbd.Image) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warnf("creating cache dir %s: %v", dir, err)
		return
	}
	path := cachePath(dir, key)
	if err := imgio.SavePNG(path, m.SideBySide()); err != nil {
		log.Warnf("caching RGBD image %s: %v", path, err)
		return
	}
	log.Debugf("saved RGBD image to cache: %s", path)
}
