package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/datasynth/synth/pkg/events"
	log "github.com/sirupsen/logrus"
)

// FileSink writes events to a file in JSONL format (one JSON object per line)
type FileSink struct {
	file   *os.File
	writer *bufio.Writer
	logger *log.Logger
	mu     sync.Mutex
}

// NewFileSink creates a new file sink that writes to the specified path.
// An existing file is truncated.
func NewFileSink(path string, logger *log.Logger) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	return &FileSink{
		file:   file,
		writer: bufio.NewWriter(file),
		logger: logger,
	}, nil
}

// Name returns the sink name
func (s *FileSink) Name() string {
	return "file"
}

// Process handles an incoming event by writing it to the file
func (s *FileSink) Process(ctx context.Context, event events.Event) error {
	record, ok := NewRecord(event)
	if !ok {
		s.logger.Warnf("[file] unknown event type: %v", event.Type())
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush flushes the buffered writer
func (s *FileSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

// Close flushes and closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		s.logger.Errorf("Failed to flush file writer: %v", err)
	}

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}
