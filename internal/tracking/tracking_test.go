package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecorderWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	rec, err := NewFileRecorder(path, "a-1")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rec.LogScalar(ctx, "precision", 0.75, 0))
	require.NoError(t, rec.LogScalar(ctx, "likelihood_s_w_expl", -2.5, 100000))
	require.Error(t, rec.LogScalar(ctx, "bad", math.NaN(), 0))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	require.Error(t, rec.LogScalar(ctx, "late", 1, 0))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []Metric
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m Metric
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		got = append(got, m)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "a-1", got[0].AnalysisID)
	assert.Equal(t, "precision", got[0].Key)
	assert.Equal(t, int64(100000), got[1].Step)
	assert.Equal(t, -2.5, got[1].Value)
}

type failingRecorder struct{ err error }

func (f failingRecorder) LogScalar(context.Context, string, float64, int64) error { return f.err }
func (f failingRecorder) Close() error                                            { return f.err }

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	mem := NewMemory()
	boom := errors.New("boom")
	multi := Multi{mem, Nop{}, failingRecorder{err: boom}}

	err := multi.LogScalar(context.Background(), "f1", 1, 0)
	assert.ErrorIs(t, err, boom)
	v, ok := mem.Last("f1")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.ErrorIs(t, multi.Close(), boom)
}

func TestMemorySeries(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.LogScalar(ctx, "x", 1, 0))
	require.NoError(t, mem.LogScalar(ctx, "x", 2, 10))
	require.Error(t, mem.LogScalar(ctx, "", 2, 10))

	assert.Equal(t, []Point{{Step: 0, Value: 1}, {Step: 10, Value: 2}}, mem.Series("x"))
	assert.Equal(t, 1, mem.Keys())
	_, ok := mem.Last("missing")
	assert.False(t, ok)
}

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNATSRecorderPublishesWithHeaders(t *testing.T) {
	srv := runNATSServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("hids.metrics.>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	rec, err := NewNATSRecorder(nil, srv.ClientURL(), "hids.metrics", "run-42")
	require.NoError(t, err)
	assert.Equal(t, "hids.metrics.run-42", rec.Subject())

	require.NoError(t, rec.LogScalar(context.Background(), "recall", 0.5, 0))
	require.NoError(t, rec.Close())

	select {
	case msg := <-msgs:
		assert.Equal(t, "hids.metrics.run-42", msg.Subject)
		assert.Equal(t, "run-42", msg.Header.Get("x-analysis-id"))
		assert.Equal(t, "recall", msg.Header.Get("x-metric-key"))
		var m Metric
		require.NoError(t, json.Unmarshal(msg.Data, &m))
		assert.Equal(t, 0.5, m.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no metric received")
	}

	require.Error(t, rec.LogScalar(context.Background(), "late", 1, 0))
}

func TestNATSRecorderRequiresSubject(t *testing.T) {
	_, err := NewNATSRecorder(nil, "nats://127.0.0.1:1", "", "id")
	require.Error(t, err)
}
