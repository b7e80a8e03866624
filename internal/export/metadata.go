// Package export writes the artifacts downstream tooling consumes: the
// per-project clip metadata document, the editor import script, and a
// CMX 3600 EDL of the clip timeline. The writers never re-derive timing;
// they reflect the boundaries actually encoded.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ClipMetadataRecord describes one successfully produced clip.
type ClipMetadataRecord struct {
	Index       int       `json:"index"`
	SourceVideo string    `json:"source_video"`
	Start       float64   `json:"start"`
	End         float64   `json:"end"`
	OutputPath  string    `json:"output_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// WriteMetadata writes the full metadata document (an array of records)
// atomically, replacing any previous version. Called after each video
// completes so the document is never more than one video stale.
func WriteMetadata(path string, records []ClipMetadataRecord) error {
	if records == nil {
		records = []ClipMetadataRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
