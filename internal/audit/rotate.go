package audit

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// rotatingFile appends to a path suffixed with the current UTC date,
// rotating to a new file at the next write after midnight. No third-party
// rotator (e.g. lumberjack) appears as a direct dependency anywhere in the
// example corpus, so rotation-by-filename-suffix is implemented directly
// here rather than reached for.
type rotatingFile struct {
	mu       sync.Mutex
	basePath string
	day      string
	f        *os.File
}

func newRotatingFile(basePath string) (*rotatingFile, error) {
	r := &rotatingFile{basePath: basePath}
	if err := r.rotateLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) currentPath(day string) string {
	return fmt.Sprintf("%s.%s", r.basePath, day)
}

func (r *rotatingFile) rotateLocked() error {
	day := time.Now().UTC().Format("2006-01-02")
	if r.f != nil && day == r.day {
		return nil
	}
	if r.f != nil {
		_ = r.f.Close()
	}
	f, err := os.OpenFile(r.currentPath(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("audit: open rotated file: %w", err)
	}
	r.f = f
	r.day = day
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotateLocked(); err != nil {
		return 0, err
	}
	return r.f.Write(p)
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
