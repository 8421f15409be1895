package batch

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// WritePlaylist rebuilds the playlist for outDir from every successful
// record, one `{dir name}/{quilt file}` entry per line, saved next to
// outDir as `{dir name}.m3u`. The file carries no #EXTM3U header; the
// Looking Glass player rejects playlists that start with one.
func WritePlaylist(s *Store, outDir string) error {
	recs, err := s.Successes()
	if err != nil {
		return err
	}

	outDir = filepath.Clean(outDir)
	dirName := filepath.Base(outDir)
	var b strings.Builder
	for _, rec := range recs {
		b.WriteString(dirName + "/" + filepath.Base(rec.QuiltFilename) + "\n")
	}

	target := filepath.Join(filepath.Dir(outDir), dirName+".m3u")
	if err := os.WriteFile(target, []byte(b.String()), 0644); err != nil {
		return err
	}
	log.Infof("wrote playlist %s with %d entries", target, len(recs))
	return nil
}
