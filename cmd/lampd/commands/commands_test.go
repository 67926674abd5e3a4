package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/build"
	"github.com/lamp-blog/lamp/internal/config"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	runVersion(cmd, nil)

	require.Contains(t, out.String(), "lampd version "+build.Version())
}

func TestApplyServeFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(serveCmd.Flags())
	require.NoError(t, cmd.ParseFlags([]string{
		"--rest", "", "--grpc", "127.0.0.1:9999", "--reviewers", "4,5",
	}))

	cfg := config.DefaultConfig()
	require.NoError(t, applyServeFlags(cmd, &cfg))

	require.False(t, cfg.REST.Enabled)
	require.True(t, cfg.GRPC.Enabled)
	require.Equal(t, "127.0.0.1:9999", cfg.GRPC.Listen)
	require.Equal(t, []int64{4, 5}, cfg.Review.Reviewers)
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lamp.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{
		"migrate", "--db", path, "--log-level", "off",
		"--backup=false",
	})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	require.NoError(t, Execute())
	require.Contains(t, out.String(), "schema version")
	require.Contains(t, out.String(), "dirty=false")

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestNewSelector(t *testing.T) {
	cfg := config.DefaultConfig().Review

	_, ok := newSelector(cfg, nil).(*review.RoundRobinSelector)
	require.True(t, ok)

	cfg.Selector = config.SelectorLeastLoaded
	_, ok = newSelector(cfg, nil).(*review.LeastLoadedSelector)
	require.True(t, ok)
}

// TestDaemonReviewFlow runs an article through submission, review and
// dispatch against a real database.
func TestDaemonReviewFlow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "lamp.db")
	cfg.REST.Enabled = false
	cfg.GRPC.Enabled = false
	cfg.Review.Reviewers = []int64{7}

	logMgr, err := build.SetupLoggers(build.LogConfig{
		Level:   "off",
		Console: io.Discard,
	}, subsystemLoggers())
	require.NoError(t, err)
	t.Cleanup(func() { _ = logMgr.Close() })

	d, err := newDaemon(cfg, logMgr)
	require.NoError(t, err)
	t.Cleanup(d.close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	a, err := d.articles.CreateDraft(ctx, 1, "Hello", "*hi*")
	require.NoError(t, err)
	_, err = d.articles.PublishArticle(ctx, a.ID)
	require.NoError(t, err)

	var jobs []review.Info
	require.Eventually(t, func() bool {
		jobs, err = d.reviews.GetUnfinishedReviewJobs(ctx, 7)
		return err == nil && len(jobs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = d.reviews.MakeReview(ctx, jobs[0].JobID, true, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := d.articles.GetArticle(ctx, a.ID)
		return err == nil && got.Status == content.StatusPublished
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
