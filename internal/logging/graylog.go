package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogHandler dials a GELF UDP endpoint and returns a JSON handler
// writing to it. The caller closes the writer on shutdown.
func NewGraylogHandler(address, level string) (slog.Handler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to graylog at %s: %w", address, err)
	}
	w.Facility = ServiceName
	return slog.NewJSONHandler(w, handlerOptions(parseLevel(level))), w, nil
}
