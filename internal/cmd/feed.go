package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/service"
)

var (
	feedChannels []string
	feedInterval time.Duration
	feedHold     bool
	feedResume   bool
	feedRealtime string
	feedPageSize int
	feedEnrich   bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Feed commands",
	Long:  "Watch feeds for new posts or view the latest page",
}

var feedWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll feeds and print new posts as they appear",
	Long: `Poll one or more feeds on an interval and print newly discovered posts.

The first poll records the newest post as a baseline; only posts published
after it are shown. Ctrl-Z pauses polling, fg resumes it and polls at once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		channels, err := parseChannels(feedChannels)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return service.NewWatchService(config.Load()).Watch(ctx, service.WatchOptions{
			Channels:    channels,
			Interval:    feedInterval,
			Hold:        feedHold,
			Resume:      feedResume,
			RealtimeURL: feedRealtime,
		})
	},
}

var feedShowCmd = &cobra.Command{
	Use:   "show [recent|watchlist]",
	Short: "Print the most recent page of a feed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel := feed.ChannelRecent
		if len(args) == 1 {
			ch, err := feed.ParseChannel(args[0])
			if err != nil {
				return err
			}
			channel = ch
		}

		size := feedPageSize
		if size <= 0 {
			size = config.Load().PageSize
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return service.NewFeedService().ShowFeed(ctx, channel, size, feedEnrich)
	},
}

func parseChannels(names []string) ([]feed.Channel, error) {
	channels := make([]feed.Channel, 0, len(names))
	for _, name := range names {
		ch, err := feed.ParseChannel(name)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func init() {
	feedCmd.AddCommand(feedWatchCmd)
	feedCmd.AddCommand(feedShowCmd)

	feedWatchCmd.Flags().StringSliceVarP(&feedChannels, "channel", "c", []string{"recent"}, "Channels to watch: recent, watchlist")
	feedWatchCmd.Flags().DurationVar(&feedInterval, "interval", 0, "Poll interval (default from poll.interval)")
	feedWatchCmd.Flags().BoolVar(&feedHold, "hold", false, "Keep accumulating new posts instead of marking them viewed")
	feedWatchCmd.Flags().BoolVar(&feedResume, "resume", false, "Continue from the stored cursor instead of a fresh baseline")
	feedWatchCmd.Flags().StringVar(&feedRealtime, "realtime", "", "Websocket URL for new-post hints (default from realtime.url)")

	feedShowCmd.Flags().IntVar(&feedPageSize, "limit", 0, "Number of posts (default from poll.page_size)")
	feedShowCmd.Flags().BoolVar(&feedEnrich, "enrich", true, "Refresh reputation and receipt state before printing")
}
