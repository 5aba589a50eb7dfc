package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want models.Event
	}{
		{
			line: "1340 21:09:45.230382300 6 101 nginx 16840 > epoll_wait maxevents=512",
			want: models.Event{
				Seq:       1340,
				Timestamp: (21*3600+9*60+45)*1_000_000 + 230382,
				CPU:       "6",
				UID:       "101",
				Process:   "nginx",
				ThreadID:  "16840",
				Direction: models.DirectionEnter,
				Type:      "epoll_wait",
				Args:      []string{"maxevents=512"},
			},
		},
		{
			line: "446 21:09:43.368862035 6 101 nginx 16840 < recvfrom fd=13(<4t>172.17.0.1:44548->172.17.0.3:8080) size=1024",
			want: models.Event{
				Seq:       446,
				Timestamp: (21*3600+9*60+43)*1_000_000 + 368862,
				CPU:       "6",
				UID:       "101",
				Process:   "nginx",
				ThreadID:  "16840",
				Direction: models.DirectionExit,
				Type:      "recvfrom",
				Args:      []string{"fd=13(<4t>172.17.0.1:44548->172.17.0.3:8080)", "size=1024"},
			},
		},
		{
			line: "7 00:00:00.000001000 0 0 sh 1 < futex",
			want: models.Event{
				Seq: 7, Timestamp: 1, CPU: "0", UID: "0", Process: "sh", ThreadID: "1",
				Direction: models.DirectionExit, Type: "futex",
			},
		},
	}

	for _, tc := range cases {
		got, err := ParseLine(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"1 21:09:45.2 6 101 nginx 16840 >",
		"x 21:09:45.2 6 101 nginx 16840 > read",
		"1 notatime 6 101 nginx 16840 > read",
		"1 21:09:45.2 6 101 nginx 16840 ? read",
	} {
		_, err := ParseLine(line)
		assert.True(t, errors.Is(err, ErrMalformedLine), line)
	}
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestReadEventLogRebasesTimestamps(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.txt",
		"1 10:00:00.000100000 0 0 p 1 > read",
		"",
		"2 10:00:00.000300000 0 0 p 1 < read",
		"3 10:00:01.000100000 0 0 p 2 < write x=1",
	)

	events, err := ReadEventLog(path)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{0, 200, 1_000_000}, []int64{events[0].Timestamp, events[1].Timestamp, events[2].Timestamp})
}

func TestReadEventLogMidnightRollover(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.txt",
		"1 23:59:59.999000000 0 0 p 1 < read",
		"2 00:00:00.001000000 0 0 p 1 < read",
	)

	events, err := ReadEventLog(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), events[1].Timestamp)
}

func TestReadEventLogFailsOnMalformedLine(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.txt",
		"1 10:00:00.0 0 0 p 1 < read",
		"garbage",
	)

	_, err := ReadEventLog(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInput))
	assert.True(t, errors.Is(err, ErrMalformedLine))
	assert.Contains(t, err.Error(), "run.txt:2")
}

func TestReadEventLogMissingFile(t *testing.T) {
	_, err := ReadEventLog(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, utils.ErrInput))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
