package repo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

// minFields is seq, time, cpu, uid, process, thread, direction, type.
const minFields = 8

// ErrMalformedLine reports a log line that does not tokenize into an event.
var ErrMalformedLine = errors.New("malformed event line")

// ParseLine parses one whitespace-delimited syscall record. The returned
// timestamp is the wall-clock reading in microseconds since midnight; trailing
// tokens are kept verbatim as arguments.
func ParseLine(line string) (models.Event, error) {
	fields := strings.Fields(line)
	if len(fields) < minFields {
		return models.Event{}, fmt.Errorf("%w: %d fields, need %d", ErrMalformedLine, len(fields), minFields)
	}

	seq, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: sequence %q", ErrMalformedLine, fields[0])
	}

	ts, err := utils.ParseClock(fields[1])
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	var dir models.Direction
	switch fields[6] {
	case ">":
		dir = models.DirectionEnter
	case "<":
		dir = models.DirectionExit
	default:
		return models.Event{}, fmt.Errorf("%w: direction %q", ErrMalformedLine, fields[6])
	}

	var args []string
	if len(fields) > minFields {
		args = append([]string(nil), fields[minFields:]...)
	}

	return models.Event{
		Seq:       seq,
		Timestamp: ts,
		CPU:       fields[2],
		UID:       fields[3],
		Process:   fields[4],
		ThreadID:  fields[5],
		Direction: dir,
		Type:      fields[7],
		Args:      args,
	}, nil
}

// ReadEventLog reads a whole log file and returns its events with timestamps
// rebased so the first event sits at zero. A wall clock that jumps back by more
// than half a day is treated as a midnight rollover.
func ReadEventLog(path string) ([]models.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewInputError("repo.ReadEventLog", "read "+path, err)
	}
	return parseEventLog(path, data)
}

func parseEventLog(path string, data []byte) ([]models.Event, error) {
	events := make([]models.Event, 0, bytes.Count(data, []byte{'\n'})+1)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		lineNo   int
		start    int64
		offset   int64
		previous int64
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev, err := ParseLine(line)
		if err != nil {
			return nil, utils.NewInputError("repo.ReadEventLog", fmt.Sprintf("%s:%d", path, lineNo), err)
		}

		if len(events) == 0 {
			start = ev.Timestamp
		} else if ev.Timestamp+offset < previous-utils.MicrosPerDay/2 {
			offset += utils.MicrosPerDay
		}
		previous = ev.Timestamp + offset
		ev.Timestamp = previous - start
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, utils.NewInputError("repo.ReadEventLog", "scan "+path, err)
	}

	return events, nil
}
