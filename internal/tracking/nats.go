package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSRecorder publishes every scalar to <subject>.<analysis id>.
type NATSRecorder struct {
	logger     *slog.Logger
	conn       *nats.Conn
	subject    string
	analysisID string
}

// NewNATSRecorder connects to url; the recorder owns the connection.
func NewNATSRecorder(logger *slog.Logger, url, subject, analysisID string) (*NATSRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		return nil, fmt.Errorf("tracking subject is empty")
	}
	conn, err := nats.Connect(url,
		nats.Name("mirador-hids"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", "url", url, "subject", subject+"."+analysisID)
	return &NATSRecorder{
		logger:     logger,
		conn:       conn,
		subject:    subject + "." + analysisID,
		analysisID: analysisID,
	}, nil
}

// Subject returns the subject scalars are published on.
func (r *NATSRecorder) Subject() string {
	return r.subject
}

func (r *NATSRecorder) LogScalar(ctx context.Context, key string, value float64, step int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.conn == nil || !r.conn.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}
	m, err := newMetric(r.analysisID, key, value, step)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal metric: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-analysis-id", r.analysisID)
	headers.Set("x-metric-key", key)
	headers.Set("x-step", strconv.FormatInt(step, 10))

	msg := &nats.Msg{
		Subject: r.subject,
		Data:    data,
		Header:  headers,
	}
	if err := r.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish metric: %w", err)
	}
	return nil
}

// Close flushes pending messages and drops the connection.
func (r *NATSRecorder) Close() error {
	if r.conn == nil {
		return nil
	}
	defer r.conn.Close()
	if err := r.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush NATS: %w", err)
	}
	return nil
}
