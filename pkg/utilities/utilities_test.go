package utilities

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSnowflakeID_UniqueUnderConcurrency(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewSnowflakeID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, levelFromString(in), in)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{Dev: true}.withDefaults()
	assert.Equal(t, "debug", c.Level)
	assert.Positive(t, c.MaxAge)

	c = Config{}.withDefaults()
	assert.Equal(t, "info", c.Level)
}

func TestInit_WithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.log")
	lg, err := Init(Config{Level: "info", File: path})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()
}
