package main

import (
	"bufio"
	"container/list"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ainoobmenpg/cc-gateway/internal/config"
	"github.com/spf13/cobra"
)

func runAuditTail(cmd *cobra.Command, configPath string, lines int, follow bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !strings.HasPrefix(cfg.Audit.Output, "file:") {
		return fmt.Errorf("audit log is not file-backed (output=%q); nothing to tail", cfg.Audit.Output)
	}
	path := strings.TrimPrefix(cfg.Audit.Output, "file:")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", path, err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	offset, err := printLastLines(out, f, lines)
	if err != nil {
		return err
	}
	if !follow {
		return nil
	}

	return followFile(cmd.Context(), out, f, offset)
}

// printLastLines prints at most n trailing lines of f and returns the byte
// offset immediately after the last line printed, for followFile to
// resume from.
func printLastLines(out io.Writer, f *os.File, n int) (int64, error) {
	scanner := bufio.NewScanner(f)
	ring := list.New()
	var offset int64
	for scanner.Scan() {
		line := scanner.Text()
		offset += int64(len(line)) + 1
		ring.PushBack(line)
		if ring.Len() > n {
			ring.Remove(ring.Front())
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read audit log: %w", err)
	}
	for e := ring.Front(); e != nil; e = e.Next() {
		fmt.Fprintln(out, e.Value.(string))
	}
	return offset, nil
}

// followFile polls the file for newly appended lines past offset until ctx
// is cancelled, mirroring `tail -f` without an OS-specific inotify dep.
func followFile(ctx context.Context, out io.Writer, f *os.File, offset int64) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return fmt.Errorf("seek audit log: %w", err)
			}
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				offset += int64(len(line)) + 1
				fmt.Fprintln(out, line)
			}
		}
	}
}
