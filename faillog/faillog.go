package faillog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"oci-instance-grabber/allocator"
)

// Log appends launch failures to a plain-text file, one line per failure.
// The file is opened for append and never truncated, so the trail is shared
// across runs of the grabber.
type Log struct {
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// Record appends exactly one line for the failure.
func (l *Log) Record(f allocator.Failure) error {
	fh, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("faillog: open %s: %w", l.path, err)
	}
	defer fh.Close()
	if _, err := fh.WriteString(f.String() + "\n"); err != nil {
		return fmt.Errorf("faillog: write %s: %w", l.path, err)
	}
	return nil
}

// Parse splits a recorded line back into a Failure. A message containing the
// separator stays joined in the Message field; only the leading three fields
// are positional.
func Parse(line string) (allocator.Failure, error) {
	parts := strings.SplitN(strings.TrimSuffix(line, "\n"), allocator.FieldSeparator, 4)
	if len(parts) != 4 {
		return allocator.Failure{}, fmt.Errorf("faillog: malformed line %q", line)
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return allocator.Failure{}, fmt.Errorf("faillog: bad timestamp in %q: %w", line, err)
	}
	status, err := strconv.Atoi(parts[2])
	if err != nil {
		return allocator.Failure{}, fmt.Errorf("faillog: bad status in %q: %w", line, err)
	}
	return allocator.Failure{
		Classification:     allocator.Classify(status),
		StatusCode:         status,
		Message:            parts[3],
		Timestamp:          ts,
		AvailabilityDomain: parts[1],
	}, nil
}
