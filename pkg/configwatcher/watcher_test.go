package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"adaptive_quiz/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)


func writeConfig(t *testing.T, path, scheme string) {
	t.Helper()
	content := []byte("jwt:\n  secret: watcher-secret\nstorage:\n  type: minio\nquiz:\n  default_scheme: " + scheme + "\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "general-6")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 1)
	go WatchConfig(ctx, path, func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, "school")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "school", cfg.Quiz.DefaultScheme)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
