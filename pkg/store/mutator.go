package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
)

var (
	ErrUnknownPost         = errors.New("post not in store")
	ErrWalletNotConfigured = errors.New("no wallet configured for tipping")
	ErrInvalidTip          = errors.New("tip amount must be positive")
)

// Wallet signs and sends tip transfers. It is provided by the host; the
// store never touches keys.
type Wallet interface {
	SendTip(ctx context.Context, recipient string, lamports int64) (txSignature string, err error)
}

// NoWallet is the Wallet used when none is configured
type NoWallet struct{}

func (NoWallet) SendTip(context.Context, string, int64) (string, error) {
	return "", ErrWalletNotConfigured
}

// PostActions is the server side of optimistic updates; *api.Client
// satisfies it
type PostActions interface {
	Vote(ctx context.Context, signature string, dir api.VoteDirection) (*api.VoteResult, error)
	SetReceipt(ctx context.Context, signature string, on bool) (*api.ReceiptStatus, error)
	RecordTip(ctx context.Context, signature, txSignature string, lamports int64) (*api.TipResult, error)
}

// Mutator applies user actions to the store optimistically: the change is
// visible immediately, then confirmed with server values or rolled back
type Mutator struct {
	store  *Store
	api    PostActions
	wallet Wallet
}

func NewMutator(store *Store, actions PostActions, wallet Wallet) *Mutator {
	if wallet == nil {
		wallet = NoWallet{}
	}
	return &Mutator{store: store, api: actions, wallet: wallet}
}

// Vote sets the user's vote on a post. Voting the same direction again is
// a no-op; use api.VoteNone to retract.
func (m *Mutator) Vote(ctx context.Context, postID string, dir api.VoteDirection) error {
	m.store.mu.RLock()
	_, ok := m.store.entries[postID]
	prev := m.store.voteLocked(postID)
	m.store.mu.RUnlock()
	if !ok {
		return ErrUnknownPost
	}
	if prev == dir {
		return nil
	}

	c := change{vote: &dir}
	c.upvotes, c.downvotes = voteDelta(prev, dir)
	id, _ := m.store.apply(postID, c)

	res, err := m.api.Vote(ctx, postID, dir)
	if err != nil {
		m.store.rollback(postID, id)
		logger.Warn("Vote failed, rolled back", "post", postID, "error", err)
		return fmt.Errorf("vote on %s: %w", postID, err)
	}

	m.store.confirm(postID, id, func(base *feed.Post) {
		base.Upvotes = res.Upvotes
		base.Downvotes = res.Downvotes
	})
	return nil
}

func voteDelta(prev, next api.VoteDirection) (up, down int) {
	switch prev {
	case api.VoteUp:
		up--
	case api.VoteDown:
		down--
	}
	switch next {
	case api.VoteUp:
		up++
	case api.VoteDown:
		down++
	}
	return up, down
}

// Tip sends lamports to the post's author through the wallet and records
// the transfer with the server
func (m *Mutator) Tip(ctx context.Context, postID string, lamports int64) error {
	if lamports <= 0 {
		return ErrInvalidTip
	}
	post, ok := m.store.Post(postID)
	if !ok {
		return ErrUnknownPost
	}

	id, _ := m.store.apply(postID, change{tips: lamports})

	tx, err := m.wallet.SendTip(ctx, post.Author.Wallet, lamports)
	if err != nil {
		m.store.rollback(postID, id)
		return fmt.Errorf("send tip: %w", err)
	}

	res, err := m.api.RecordTip(ctx, postID, tx, lamports)
	if err != nil {
		// the transfer went through; the next reconcile or feed refresh
		// brings the real total
		m.store.rollback(postID, id)
		logger.Warn("Tip sent but not recorded", "post", postID, "tx", tx, "error", err)
		return fmt.Errorf("record tip %s: %w", tx, err)
	}

	m.store.confirm(postID, id, func(base *feed.Post) {
		base.TipsReceived = res.TipsReceived
	})
	return nil
}

// ToggleReceipt flips the receipt (bookmark) on a post and returns the new
// state
func (m *Mutator) ToggleReceipt(ctx context.Context, postID string) (bool, error) {
	post, ok := m.store.Post(postID)
	if !ok {
		return false, ErrUnknownPost
	}
	want := !post.Receipted

	id, _ := m.store.apply(postID, change{receipt: &want})

	st, err := m.api.SetReceipt(ctx, postID, want)
	if err != nil {
		m.store.rollback(postID, id)
		return post.Receipted, fmt.Errorf("receipt %s: %w", postID, err)
	}

	m.store.confirm(postID, id, func(base *feed.Post) {
		base.Receipted = st.IsReceipted
		base.ReceiptedAt = nil
		if st.IsReceipted {
			at := time.Now().UTC()
			if st.ReceiptedAt != nil {
				at = *st.ReceiptedAt
			}
			base.ReceiptedAt = &at
		}
	})
	return st.IsReceipted, nil
}
