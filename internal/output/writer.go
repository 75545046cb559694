// Package output writes the generated streams to their files.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/vitebski/scriptdb/pkg/models"
)

// DefaultNames are the file names used when none are configured.
var DefaultNames = map[models.Stream]string{
	models.DataDefinition: "SQLStatementFile.sql",
	models.DataAccess:     "DataAccessMethodsFile.cs",
	models.Controller:     "ControllerMethodsFile.cs",
	models.Samples:        "SampleScripts.sql",
}

// Writer writes each stream to its own file under Dir, replacing any
// previous content.
type Writer struct {
	Dir    string
	Names  map[models.Stream]string
	Logger *logrus.Logger
}

// NewWriter creates a writer. Streams missing from names use DefaultNames.
func NewWriter(dir string, names map[models.Stream]string, logger *logrus.Logger) *Writer {
	merged := make(map[models.Stream]string, len(DefaultNames))
	for stream, name := range DefaultNames {
		merged[stream] = name
	}
	for stream, name := range names {
		if name != "" {
			merged[stream] = name
		}
	}
	return &Writer{Dir: dir, Names: merged, Logger: logger}
}

// optional streams are only written when they carry text
func optional(stream models.Stream) bool {
	return stream == models.Samples
}

// Write writes the streams in models.Streams order and returns the paths
// written.
func (w *Writer) Write(streams map[models.Stream]string) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", w.Dir, err)
	}

	var written []string
	for _, stream := range models.Streams {
		text := streams[stream]
		if text == "" && optional(stream) {
			continue
		}

		path := filepath.Join(w.Dir, w.Names[stream])
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		w.Logger.Infof("Wrote %s stream to %s (%d bytes)", stream, path, len(text))
		written = append(written, path)
	}
	return written, nil
}
