package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the logger's concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestSetupLoggers(t *testing.T) {
	t.Parallel()

	var (
		out    syncBuffer
		review btclogv2.Logger
	)
	m, err := SetupLoggers(LogConfig{
		Level:   "info",
		Console: &out,
		Dir:     t.TempDir(),
	}, map[string]func(btclogv2.Logger){
		"REVW": func(l btclogv2.Logger) { review = l },
		"DISP": func(btclogv2.Logger) {},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.Equal(t, []string{"DISP", "REVW"}, m.Subsystems())

	review.InfoS(context.Background(), "job created", "job_id", 7)
	review.DebugS(context.Background(), "hidden")

	require.Contains(t, out.String(), "REVW")
	require.Contains(t, out.String(), "job created")
	require.False(t, strings.Contains(out.String(), "hidden"))

	require.NoError(t, m.SetLevel("REVW", "debug"))
	review.DebugS(context.Background(), "now visible")
	require.Contains(t, out.String(), "now visible")

	require.Error(t, m.SetLevel("NOPE", "debug"))
	require.Error(t, m.SetLevel("", "loud"))
}

func TestSetupLoggersBadLevel(t *testing.T) {
	t.Parallel()

	_, err := SetupLoggers(LogConfig{Level: "loud"}, nil)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.3.0", Version())
	require.Empty(t, Tags())
}

func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	cfg := RotatorConfig{Dir: filepath.Join(t.TempDir(), "logs")}
	w, err := NewRotatingLogWriter(cfg)
	require.NoError(t, err)

	_, err = w.Write([]byte("review job 7 decided\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	require.Contains(t, string(data), "review job 7 decided")

	_, err = NewRotatingLogWriter(RotatorConfig{})
	require.Error(t, err)
}
