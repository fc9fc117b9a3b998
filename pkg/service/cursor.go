package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/cursor"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/output"
)

var allChannels = []feed.Channel{feed.ChannelRecent, feed.ChannelWatchlist}

// OpenCursorStore returns the store selected by cursor.backend. The returned
// close func is never nil.
func OpenCursorStore(ctx context.Context, s config.Settings) (cursor.Store, func(), error) {
	switch s.CursorBackend {
	case "", "memory":
		return cursor.NewMemoryStore(), func() {}, nil
	case "redis":
		rs, err := cursor.NewRedisStore(ctx, cursor.RedisOptions{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() {
			if err := rs.Close(); err != nil {
				logger.Warn("Failed to close cursor store", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cursor backend %q (want memory or redis)", s.CursorBackend)
	}
}

// CursorService inspects and clears persisted cursors
type CursorService struct {
	store cursor.Store
	out   io.Writer
}

func NewCursorService(store cursor.Store) *CursorService {
	return &CursorService{store: store, out: os.Stdout}
}

// Show prints the cursor of each channel, or of one when channel is set
func (cs *CursorService) Show(ctx context.Context, channel string) error {
	channels, err := selectChannels(channel)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		cur, err := cs.store.Get(ctx, ch)
		if err != nil {
			return err
		}
		if cur == "" {
			cur = "-"
		}
		rows = append(rows, []string{ch.String(), cur})
	}

	output.PrintTable(cs.out, []string{"CHANNEL", "CURSOR"}, rows)
	return nil
}

// Clear deletes the cursor so the next watch starts from a fresh baseline
func (cs *CursorService) Clear(ctx context.Context, channel string) error {
	channels, err := selectChannels(channel)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		if err := cs.store.Clear(ctx, ch); err != nil {
			return err
		}
		logger.Info("Cleared cursor", "channel", ch)
	}
	return nil
}

func selectChannels(channel string) ([]feed.Channel, error) {
	if channel == "" || channel == "all" {
		return allChannels, nil
	}
	ch, err := feed.ParseChannel(channel)
	if err != nil {
		return nil, err
	}
	return []feed.Channel{ch}, nil
}
