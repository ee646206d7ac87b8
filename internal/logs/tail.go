package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// TailOptions controls Tail.
type TailOptions struct {
	// Lines is how many trailing lines to emit first; 0 emits none.
	Lines  int
	Follow bool
	// Poll is the follow interval; zero means 250ms.
	Poll time.Duration
}

// CurrentLogPath is the pointer the daemon keeps at its active log file.
func CurrentLogPath(logDir string) string {
	return filepath.Join(logDir, "localqueue.log")
}

// Tail emits the last opts.Lines lines of path, then with Follow emits
// appended lines until ctx is done. A missing file yields no lines; in follow
// mode Tail waits for it to appear.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}

	lines, offset, info, err := lastLines(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		current, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat log file: %w", err)
		}
		// A new run or a truncation restarts from the top of the file.
		if info == nil || !os.SameFile(info, current) || current.Size() < offset {
			offset = 0
		}
		info = current
		if current.Size() == offset {
			continue
		}

		lines, next, err := readFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			emit(line)
		}
	}
}

func lastLines(path string, limit int) ([]string, int64, os.FileInfo, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil, nil
	}
	if err != nil {
		return nil, 0, nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, nil, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), info, nil
	}

	ring := make([]string, 0, limit)
	offset, err := scanLines(file, func(line string) {
		if len(ring) == limit {
			ring = append(ring[1:], line)
			return
		}
		ring = append(ring, line)
	})
	if err != nil {
		return nil, 0, nil, err
	}
	return ring, offset, info, nil
}

func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, offset, err
	}
	return lines, offset + read, nil
}

// scanLines reports complete lines only and returns the bytes consumed by
// them, so a partially written last line is picked up on the next poll.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(line[:len(line)-1])
	}
}
