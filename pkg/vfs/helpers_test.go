package vfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/storage"
	"github.com/marmos91/dittoftp/pkg/storage/memory"
)

var aliceCreds = storage.Credentials{AccessKeyID: "alice-key", SecretAccessKey: "alice-secret"}

// recordingMetrics captures VFS observations.
type recordingMetrics struct {
	mu        sync.Mutex
	ops       map[string][]string
	bytes     map[string]int64
	truncated int
	vanished  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: make(map[string][]string), bytes: make(map[string]int64)}
}

func (m *recordingMetrics) RecordOperation(op string, _ time.Duration, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op] = append(m.ops[op], kind)
}

func (m *recordingMetrics) RecordBytesTransferred(direction string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += n
}

func (m *recordingMetrics) RecordListingTruncated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncated++
}

func (m *recordingMetrics) RecordVanishedContainer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vanished++
}

type testEnv struct {
	fs      *FS
	svc     *memory.Service
	client  storage.Client
	staging afero.Fs
	metrics *recordingMetrics
}

func newTestEnv(t *testing.T, configure ...func(*Options)) *testEnv {
	t.Helper()

	svc := memory.New(memory.Config{Accounts: map[string]string{
		aliceCreds.AccessKeyID: aliceCreds.SecretAccessKey,
	}})
	client, err := svc.Open(context.Background(), aliceCreds)
	require.NoError(t, err)

	staging := afero.NewMemMapFs()
	require.NoError(t, staging.MkdirAll("/staging", 0o755))

	rec := newRecordingMetrics()
	opts := Options{
		MaxListingEntries: DefaultMaxListingEntries,
		Staging:           staging,
		StagingDir:        "/staging",
		Metrics:           rec,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	return &testEnv{
		fs:      New(NewSession("alice", aliceCreds, client), opts),
		svc:     svc,
		client:  client,
		staging: staging,
		metrics: rec,
	}
}

func (e *testEnv) mustMkdir(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, e.fs.MakeDirectory(context.Background(), p))
}

func (e *testEnv) mustPut(t *testing.T, container, key string, data []byte) {
	t.Helper()
	require.NoError(t, e.client.Upload(context.Background(), container, key, bytes.NewReader(data), int64(len(data))))
}

func (e *testEnv) mustWriteFile(t *testing.T, p string, data []byte) {
	t.Helper()
	f, err := e.fs.Open(context.Background(), p, ModeWrite)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func (e *testEnv) mustReadFile(t *testing.T, p string) []byte {
	t.Helper()
	f, err := e.fs.Open(context.Background(), p, ModeRead)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func (e *testEnv) stagingFiles(t *testing.T) []os.FileInfo {
	t.Helper()
	infos, err := afero.ReadDir(e.staging, "/staging")
	require.NoError(t, err)
	return infos
}

// captureLogs redirects the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "DEBUG", "text")
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "INFO", "text") })
	return &buf
}
