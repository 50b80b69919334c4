package audit

import (
	"context"
	"fmt"
	"os"
)

// FileSink appends JSON lines to a local file.
type FileSink struct {
	f *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// Write emits line plus newline in a single write call.
func (s *FileSink) Write(_ context.Context, line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := s.f.Write(buf)
	return err
}

func (s *FileSink) Close() error {
	return s.f.Close()
}
