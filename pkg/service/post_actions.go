package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/store"
)

// PostActionsService votes on, receipts and tips single posts. Each action
// goes through the optimistic store so the printed tally is the one the
// server confirmed.
type PostActionsService struct {
	api *api.Client
	out io.Writer
}

func NewPostActionsService() *PostActionsService {
	useStoredToken()
	return &PostActionsService{api: api.Default(), out: os.Stdout}
}

// ParseVote accepts up, down or none
func ParseVote(s string) (api.VoteDirection, error) {
	switch strings.ToLower(s) {
	case "up", "+1", "+":
		return api.VoteUp, nil
	case "down", "-1", "-":
		return api.VoteDown, nil
	case "none", "0", "clear":
		return api.VoteNone, nil
	}
	return api.VoteNone, fmt.Errorf("unknown vote %q (want up, down or none)", s)
}

// Vote sets the user's vote on a post and prints the confirmed tally
func (s *PostActionsService) Vote(ctx context.Context, signature string, dir api.VoteDirection) error {
	st, m, post, err := s.load(ctx, signature, nil)
	if err != nil {
		return err
	}
	if err := m.Vote(ctx, post.ID, dir); err != nil {
		return err
	}

	after, _ := st.Post(post.ID)
	fmt.Fprintf(s.out, "Vote recorded on %s: ▲ %d  ▼ %d\n", post.ID, after.Upvotes, after.Downvotes)
	return nil
}

// ToggleReceipt flips the receipt on a post
func (s *PostActionsService) ToggleReceipt(ctx context.Context, signature string) error {
	_, m, post, err := s.load(ctx, signature, nil)
	if err != nil {
		return err
	}
	on, err := m.ToggleReceipt(ctx, post.ID)
	if err != nil {
		return err
	}

	if on {
		fmt.Fprintf(s.out, "Receipted %s.\n", post.ID)
	} else {
		fmt.Fprintf(s.out, "Removed receipt from %s.\n", post.ID)
	}
	return nil
}

// Tip records a transfer of lamports to the post's author. tx is the
// signature of a transfer already sent from the user's wallet.
func (s *PostActionsService) Tip(ctx context.Context, signature string, lamports int64, tx string) error {
	st, m, post, err := s.load(ctx, signature, sentTransfer(tx))
	if err != nil {
		return err
	}
	if err := m.Tip(ctx, post.ID, lamports); err != nil {
		return err
	}

	after, _ := st.Post(post.ID)
	logger.Info("Tip recorded", "post", post.ID, "lamports", lamports, "total", after.TipsReceived)
	fmt.Fprintf(s.out, "Tipped %s %d lamports (total %d).\n", post.Author.Handle(), lamports, after.TipsReceived)
	return nil
}

// load seeds a one-post store with the current server state
func (s *PostActionsService) load(ctx context.Context, signature string, wallet store.Wallet) (*store.Store, *store.Mutator, feed.Post, error) {
	post, err := s.api.GetPost(ctx, signature)
	if err != nil {
		return nil, nil, feed.Post{}, err
	}

	st := store.New()
	st.AddPosts([]feed.Post{*post})
	return st, store.NewMutator(st, s.api, wallet), *post, nil
}

// sentTransfer is a Wallet for a transfer the user has already signed
// elsewhere: it hands back the transaction signature
type sentTransfer string

func (t sentTransfer) SendTip(context.Context, string, int64) (string, error) {
	if t == "" {
		return "", store.ErrWalletNotConfigured
	}
	return string(t), nil
}
