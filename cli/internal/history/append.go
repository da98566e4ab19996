package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"commitgen/cli/internal/erruser"
)

const (
	historyFilename = "history.jsonl"
	historyGzPrefix = "history.jsonl."
	historyGzSuffix = ".gz"
	lockFilename    = "history.lock"
	// DefaultMaxRecords bounds the active history file.
	DefaultMaxRecords  = 500
	maxRotatedArchives = 3
)

// maxLineSize bounds one history line. Records carry the message, which is
// small, so 1 MiB is generous.
const maxLineSize = 1 << 20

// Append writes record as one JSON line to dir/history.jsonl, creating dir
// and the file if missing. When maxRecords > 0 and the file then holds more
// lines, the oldest lines are moved to a gzipped archive. Concurrent
// processes are serialized by a lock file in dir.
func Append(dir string, record Record, maxRecords int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return erruser.New("Could not create the history directory.", err)
	}
	release, err := lock(dir)
	if err != nil {
		return erruser.New("Could not lock the history file.", err)
	}
	defer release()
	path := filepath.Join(dir, historyFilename)
	line, err := json.Marshal(record)
	if err != nil {
		return erruser.New("Could not record generation history.", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return erruser.New("Could not record generation history.", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return erruser.New("Could not record generation history.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not record generation history.", err)
	}
	if maxRecords > 0 {
		return rotateIfNeeded(path, maxRecords)
	}
	return nil
}

// ReadRecords returns all records in dir, oldest first: archives in
// ascending order, then the active file. A missing directory yields none.
func ReadRecords(dir string) ([]Record, error) {
	archives, err := listArchives(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, erruser.New("Could not read the history directory.", err)
	}
	var out []Record
	for _, a := range archives {
		recs, err := readGzipRecords(filepath.Join(dir, a.name))
		if err != nil {
			return nil, erruser.New("Could not read a history archive.", err)
		}
		out = append(out, recs...)
	}
	lines, err := readLines(filepath.Join(dir, historyFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, erruser.New("Could not read the history file.", err)
	}
	recs, err := parseRecordLines(lines)
	if err != nil {
		return nil, erruser.New("The history file is damaged.", err)
	}
	return append(out, recs...), nil
}

// Tail returns the last n records, newest first.
func Tail(dir string, n int) ([]Record, error) {
	recs, err := ReadRecords(dir)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out, nil
}

func readGzipRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()
	lines, err := readLinesFromReader(gr)
	if err != nil {
		return nil, err
	}
	return parseRecordLines(lines)
}

func parseRecordLines(lines []string) ([]Record, error) {
	var out []Record
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid history line: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// rotateIfNeeded moves all but the last maxRecords lines of path into a new
// archive, then rewrites path with the kept lines (temp file + rename).
func rotateIfNeeded(path string, maxRecords int) error {
	lines, err := readLines(path)
	if err != nil {
		return erruser.New("Could not read history for rotation.", err)
	}
	if len(lines) <= maxRecords {
		return nil
	}
	dropped := lines[:len(lines)-maxRecords]
	keep := lines[len(lines)-maxRecords:]
	dir := filepath.Dir(path)

	archives, err := listArchives(dir)
	if err != nil {
		return erruser.New("Could not rotate the history file.", err)
	}
	next := 1
	if len(archives) > 0 {
		next = archives[len(archives)-1].n + 1
	}
	archivePath := filepath.Join(dir, historyGzPrefix+strconv.Itoa(next)+historyGzSuffix)
	if err := writeGzippedLines(archivePath, dropped); err != nil {
		return erruser.New("Could not write a history archive.", err)
	}
	archives = append(archives, archive{n: next, name: filepath.Base(archivePath)})
	for len(archives) > maxRotatedArchives {
		if err := os.Remove(filepath.Join(dir, archives[0].name)); err != nil {
			return erruser.New("Could not prune history archives.", err)
		}
		archives = archives[1:]
	}

	f, err := os.CreateTemp(dir, "history.*.tmp")
	if err != nil {
		return erruser.New("Could not rotate the history file.", err)
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	w := bufio.NewWriter(f)
	for _, l := range keep {
		_, _ = w.WriteString(l)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return erruser.New("Could not rotate the history file.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not rotate the history file.", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return erruser.New("Could not rotate the history file.", err)
	}
	return nil
}

type archive struct {
	n    int
	name string
}

// listArchives returns dir's history.jsonl.N.gz files ordered by N.
func listArchives(dir string) ([]archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, historyGzPrefix) || !strings.HasSuffix(name, historyGzSuffix) {
			continue
		}
		n, err := strconv.Atoi(name[len(historyGzPrefix) : len(name)-len(historyGzSuffix)])
		if err != nil || n < 1 {
			continue
		}
		out = append(out, archive{n: n, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	return out, nil
}

func writeGzippedLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	gw := gzip.NewWriter(f)
	for _, l := range lines {
		if _, err := gw.Write([]byte(l)); err != nil {
			_ = gw.Close()
			return err
		}
	}
	return gw.Close()
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLinesFromReader(f)
}

func readLinesFromReader(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lines = append(lines, sc.Text()+"\n")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
