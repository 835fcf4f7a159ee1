// Package resultstore persists completed debate results as one JSON document
// per debate plus a shared append-only index of newline-delimited summaries.
//
// The index is an append log rather than a point-update structure so that
// concurrent debate completions never race on a read-modify-write cycle.
package resultstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/types"
)

const indexFilename = "debate_index.jsonl"

// ErrNotFound is returned when a stored result doesn't exist.
var ErrNotFound = errors.New("debate result not found")

// IndexEntry is one line of the append-only summary index.
type IndexEntry struct {
	DebateID      string             `json:"debateId"`
	Topic         string             `json:"topic"`
	Timestamp     int64              `json:"timestamp"`
	NumDebaters   int                `json:"numDebaters"`
	Winner        string             `json:"winner"`
	Filename      string             `json:"filename"`
	AverageScores map[string]float64 `json:"averageScores"`
}

// Store writes debate results to a directory on disk.
type Store struct {
	dir string

	// serializes index appends; each append is a single whole-line write
	// with O_APPEND so concurrent completions interleave lines, never bytes.
	indexMu sync.Mutex
}

// NewStore creates a result store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Filename returns the document name for a result, keyed by creation date
// and debate identity.
func Filename(result *types.DebateResult) string {
	date := time.UnixMilli(result.Timestamp).UTC().Format("20060102")
	return fmt.Sprintf("debate_%s_%s.json", date, result.DebateID)
}

// Persist writes the full result document and appends its summary line to
// the index. Both writes are attempted; the first failure is returned but a
// failed document write does not prevent the caller from retaining the
// in-memory result.
func (s *Store) Persist(ctx context.Context, result *types.DebateResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid result: %w", err)
	}

	filename := Filename(result)

	docErr := s.writeDocument(filename, result)
	if docErr != nil {
		logger.Error("failed to write debate result", "debate_id", result.DebateID, "error", docErr)
	}

	idxErr := s.appendIndex(IndexEntry{
		DebateID:      result.DebateID,
		Topic:         result.Topic,
		Timestamp:     result.Timestamp,
		NumDebaters:   len(result.Scores),
		Winner:        result.FinalRanking[0],
		Filename:      filename,
		AverageScores: AverageScores(result.Scores),
	})
	if idxErr != nil {
		logger.Error("failed to append result index", "debate_id", result.DebateID, "error", idxErr)
	}

	if docErr != nil {
		return docErr
	}
	if idxErr != nil {
		return idxErr
	}

	logger.Info("debate result persisted", "debate_id", result.DebateID, "filename", filename)
	return nil
}

// Load reads back one stored result document by filename.
func (s *Store) Load(ctx context.Context, filename string) (*types.DebateResult, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var result types.DebateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Index reads all summary lines from the index, skipping any line that fails
// to parse so a torn historical write cannot poison the whole read.
func (s *Store) Index(ctx context.Context) ([]IndexEntry, error) {
	f, err := os.Open(filepath.Join(s.dir, indexFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	var entries []IndexEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry IndexEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Warn("skipping malformed index line", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to scan index: %w", err)
	}
	return entries, nil
}

// AverageScores computes the exact arithmetic mean of each score category
// across all participants.
func AverageScores(scores []types.DebateScore) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}

	sums := make(map[string]int)
	for _, ds := range scores {
		for category, v := range ds.Scores.Categories() {
			sums[category] += v
		}
	}

	averages := make(map[string]float64, len(sums))
	for category, sum := range sums {
		averages[category] = float64(sum) / float64(len(scores))
	}
	return averages
}

// writeDocument writes the result JSON atomically: temp file then rename, so
// a crashed write never leaves a half-document behind.
func (s *Store) writeDocument(filename string, result *types.DebateResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close result file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, filename)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize result file: %w", err)
	}
	return nil
}

// appendIndex appends one summary line to the shared index.
func (s *Store) appendIndex(entry IndexEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal index entry: %w", err)
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, indexFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append index entry: %w", err)
	}
	return nil
}
