package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
)

// Header is the fixed first line of every CSV artifact.
const Header = "application_name,tier_name,backend_type,backend_name"

// CSVSink streams backend rows to a CSV file. The file is created (or
// truncated) on Begin and rows are flushed per Append, so partial output
// survives a failed run.
type CSVSink struct {
	path   string
	quote  bool
	file   *os.File
	logger zerolog.Logger
}

// NewCSVSink creates a CSV sink writing to path. When quote is false the
// output is byte-compatible with the legacy artifact: fields are joined with
// commas and never escaped, so a name containing a comma corrupts its row.
// Enabling quote switches to RFC 4180 quoting.
func NewCSVSink(path string, quote bool, logger zerolog.Logger) *CSVSink {
	return &CSVSink{
		path:   path,
		quote:  quote,
		logger: logger.With().Str("component", "csv-sink").Logger(),
	}
}

// Begin creates the output file and writes the header line.
func (s *CSVSink) Begin(ctx context.Context) error {
	file, err := os.Create(s.path)
	if err != nil {
		return export.NewConfigError("creating output file failed", err)
	}
	s.file = file

	if _, err := fmt.Fprintln(file, Header); err != nil {
		return export.NewTransportError("writing csv header failed", err)
	}
	s.logger.Debug().Str("path", s.path).Msg("Output file created")
	return nil
}

// Append writes rows in order and flushes them to disk.
func (s *CSVSink) Append(ctx context.Context, rows []export.Backend) error {
	if s.quote {
		return s.appendQuoted(rows)
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(s.file, "%s,%s,%s,%s\n", r.Application, r.Tier, r.Type, r.Name); err != nil {
			return export.NewTransportError("writing csv row failed", err)
		}
	}
	return s.file.Sync()
}

func (s *CSVSink) appendQuoted(rows []export.Backend) error {
	w := csv.NewWriter(s.file)
	for _, r := range rows {
		if err := w.Write([]string{r.Application, r.Tier, r.Type, r.Name}); err != nil {
			return export.NewTransportError("writing csv row failed", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return export.NewTransportError("flushing csv rows failed", err)
	}
	return s.file.Sync()
}

// Close releases the file handle.
func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Path returns the artifact location, for post-run delivery.
func (s *CSVSink) Path() string {
	return s.path
}
