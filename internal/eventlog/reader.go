package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

const maxLineBytes = 4 << 20

// Entry is a decoded event line. Fields are kept generic so entries written
// by older versions still round-trip.
type Entry map[string]any

// Reader loads events back from the writer's directory.
type Reader struct {
	dir    string
	logger *zap.Logger
}

// NewReader creates a reader over dir.
func NewReader(dir string, logger *zap.Logger) *Reader {
	return &Reader{dir: dir, logger: logger}
}

// Read returns the events of one day (YYYYMMDD) of the given type, or every
// type for "all", sorted by timestamp. Malformed lines are skipped; a missing
// file is an empty result.
func (r *Reader) Read(date, logType string) ([]Entry, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("date %q must be YYYYMMDD: %w", date, domain.ErrInvalidArgument)
	}
	t, err := ParseType(logType)
	if err != nil {
		return nil, err
	}

	types := []Type{t}
	if t == TypeAll {
		types = Types
	}

	entries := []Entry{}
	for _, typ := range types {
		got, err := r.readFile(filepath.Join(r.dir, fileName(typ, day)))
		if err != nil {
			return nil, err
		}
		entries = append(entries, got...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return timestampOf(entries[i]).Before(timestampOf(entries[j]))
	})
	return entries, nil
}

func (r *Reader) readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			r.logger.Warn("Skipping malformed event line",
				zap.String("file", filepath.Base(path)),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// timestampOf parses the entry timestamp; entries without one sort first.
func timestampOf(e Entry) time.Time {
	s, _ := e["timestamp"].(string)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
