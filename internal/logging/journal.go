// Package logging writes the request journal and console logs.
package logging

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one HTTP exchange with the task service.
type Entry struct {
	Time       time.Time `json:"time"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	TaskID     int64     `json:"task_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Journal appends Entry records to a per-session JSONL file.
type Journal struct {
	Dir       string
	SessionID string
	Path      string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJournal creates a per-session journal file under baseDir, grouped by
// the project that workDir belongs to.
func NewJournal(baseDir, workDir string) (*Journal, error) {
	logDir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	sessionID := newSessionID()
	path := filepath.Join(logDir, sessionID+".jsonl")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}

	return &Journal{
		Dir:       logDir,
		SessionID: sessionID,
		Path:      path,
		file:      file,
		enc:       json.NewEncoder(file),
	}, nil
}

// Record appends one entry. It is safe for concurrent use; a nil journal
// discards the entry.
func (j *Journal) Record(e Entry) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := j.enc.Encode(e); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// ReadEntries decodes every entry in a journal file.
func ReadEntries(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// FindLogDir returns the journal directory for workDir: baseDir, resolved
// against workDir when relative, joined with a per-project name.
func FindLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}
	if workDir == "" {
		workDir = "."
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolve work dir: %w", err)
	}
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(workDir, baseDir)
	}
	return filepath.Join(filepath.Clean(baseDir), projectDirName(gitToplevel(workDir))), nil
}

// gitToplevel returns the root of the git repository containing dir, or dir
// itself outside a repository.
func gitToplevel(dir string) string {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if root := strings.TrimSpace(string(out)); err == nil && root != "" {
		return root
	}
	return dir
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// projectDirName is the root's base name made path-safe, suffixed with a
// short hash of the full path so same-named projects get separate dirs.
func projectDirName(root string) string {
	name := strings.Trim(unsafeNameChars.ReplaceAllString(filepath.Base(root), "_"), "_")
	if name == "" {
		name = "project"
	}
	sum := sha1.Sum([]byte(root))
	return name + "-" + hex.EncodeToString(sum[:4])
}

// FindLatestLog returns the most recently modified journal in logDir, or ""
// when there is none.
func FindLatestLog(logDir string) (string, error) {
	entries, err := os.ReadDir(logDir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest, latestMod = filepath.Join(logDir, entry.Name()), info.ModTime()
		}
	}
	return latest, nil
}

// TailLog copies a journal to w. When n > 0 only the last n lines are
// shown. With follow set it keeps polling for new data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := seekLastLines(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if !follow {
		_, err = io.Copy(w, file)
		return err
	}
	return tailFollow(ctx, w, file)
}

// seekLastLines positions file at the start of its last n lines by scanning
// backwards from the end for newlines.
func seekLastLines(file *os.File, n int) error {
	const chunkSize = 8192

	stat, err := file.Stat()
	if err != nil {
		return err
	}
	end := stat.Size()
	buf := make([]byte, chunkSize)

	// A trailing newline terminates the last line.
	if end > 0 {
		if _, err := file.ReadAt(buf[:1], end-1); err != nil {
			return err
		}
		if buf[0] == '\n' {
			end--
		}
	}

	seen := 0
	for pos := end; pos > 0; {
		size := int64(chunkSize)
		if pos < size {
			size = pos
		}
		pos -= size
		if _, err := file.ReadAt(buf[:size], pos); err != nil {
			return err
		}
		for i := size - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			seen++
			if seen == n {
				_, err := file.Seek(pos+i+1, io.SeekStart)
				return err
			}
		}
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}

func tailFollow(ctx context.Context, w io.Writer, file *os.File) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := io.Copy(w, file); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func newSessionID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
