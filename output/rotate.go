package output

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// OutputRotator wraps an output file so a consumer goroutine can reopen
// it in place on a logrotate-style SIGHUP (spec §5 "SIGHUP causes the
// consumer to reopen its output file"). Write is safe to call
// concurrently with Reopen.
type OutputRotator struct {
	path string
	log  *zerolog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewOutputRotator opens path for appending (creating it if needed) and returns a
// rotator ready to receive Write calls. log defaults to zerolog.Nop()
// when nil.
func NewOutputRotator(path string, log *zerolog.Logger) (*OutputRotator, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &OutputRotator{path: path, log: log, file: f}, nil
}

// Write implements io.Writer.
func (r *OutputRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Write(p)
}

// Reopen closes the current file and opens path afresh, picking up a
// renamed-away log file the way logrotate expects.
func (r *OutputRotator) Reopen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("failed to reopen output file")
		return err
	}
	if cerr := r.file.Close(); cerr != nil {
		r.log.Warn().Err(cerr).Msg("error closing previous output file")
	}
	r.file = next
	r.log.Info().Str("path", r.path).Msg("reopened output file")
	return nil
}

// Close closes the underlying file.
func (r *OutputRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
