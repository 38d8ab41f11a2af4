package scraper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAll_StopsWhenControlDisappears(t *testing.T) {
	site := &fakeSite{loadMoreTimes: 4}
	page, _ := site.NewPage(context.Background())

	clicks, err := paginator{selector: "button", maxClicks: 200}.loadAll(context.Background(), page, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 4, clicks)
}

func TestLoadAll_CeilingBoundsAStuckControl(t *testing.T) {
	site := &fakeSite{loadMoreTimes: -1}
	page, _ := site.NewPage(context.Background())

	clicks, err := paginator{selector: "button", maxClicks: 7}.loadAll(context.Background(), page, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 7, clicks)
}

func TestLoadAll_ClickErrorEndsPagination(t *testing.T) {
	site := &fakeSite{loadMoreTimes: -1, clickErr: errors.New("element detached")}
	page, _ := site.NewPage(context.Background())

	clicks, err := paginator{selector: "button", maxClicks: 10}.loadAll(context.Background(), page, slog.Default())
	require.NoError(t, err)
	assert.Zero(t, clicks)
}

func TestLoadAll_HonorsCancellation(t *testing.T) {
	site := &fakeSite{loadMoreTimes: -1}
	page, _ := site.NewPage(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pg := paginator{selector: "button", delay: 10 * time.Millisecond, loadWait: 10 * time.Millisecond, maxClicks: 1000000}
	_, err := pg.loadAll(ctx, page, slog.Default())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
