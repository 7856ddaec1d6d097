package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/datasynth/synth/pkg/events"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// CompactSink writes events as a stream of msgpack encoded records. Field
// names follow the json tags so both outputs carry the same keys.
type CompactSink struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *msgpack.Encoder
	logger  *log.Logger
	mu      sync.Mutex
}

func NewCompactSink(path string, logger *log.Logger) (*CompactSink, error) {
	file, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	writer := bufio.NewWriter(file)
	encoder := msgpack.NewEncoder(writer)
	encoder.SetCustomStructTag("json")
	encoder.UseCompactInts(true)
	encoder.UseCompactFloats(true)

	return &CompactSink{
		file:    file,
		writer:  writer,
		encoder: encoder,
		logger:  logger,
	}, nil
}

func (s *CompactSink) Name() string {
	return "compact"
}

func (s *CompactSink) Process(ctx context.Context, event events.Event) error {
	record, ok := NewRecord(event)
	if !ok {
		s.logger.Warnf("[compact] unknown event type: %v", event.Type())
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

func (s *CompactSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

func (s *CompactSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		s.logger.Errorf("Failed to flush compact writer: %v", err)
	}

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
