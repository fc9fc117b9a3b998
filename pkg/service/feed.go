package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/output"
	"github.com/zfogg/solfeed/pkg/store"
)

// FeedService provides one-shot feed operations
type FeedService struct {
	api *api.Client
	out io.Writer
}

// NewFeedService creates a feed service over the shared HTTP client
func NewFeedService() *FeedService {
	useStoredToken()
	return &FeedService{api: api.Default(), out: os.Stdout}
}

// ShowFeed fetches and prints the most recent page of a channel. With
// enrich set it runs one reconcile pass first so reputation and receipt
// state are current.
func (fs *FeedService) ShowFeed(ctx context.Context, channel feed.Channel, pageSize int, enrich bool) error {
	logger.Debug("Showing feed", "channel", channel, "page_size", pageSize)

	page, err := fs.api.FetchSince(ctx, channel, "", pageSize)
	if err != nil {
		return err
	}

	if len(page.Posts) == 0 {
		fmt.Fprintf(fs.out, "No posts in %s.\n", channel)
		return nil
	}

	st := store.New()
	st.AddPosts(page.Posts)
	if enrich {
		store.NewReconciler(st, fs.api, store.ReconcilerOptions{}).RunOnce(ctx)
	}

	title := fmt.Sprintf("%s (%d)", channel, st.Len())
	return output.NewPostPrinter(fs.out, output.GetFormat()).Posts(title, st.Posts())
}
