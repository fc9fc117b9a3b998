// Package store holds the shared post collection the CLI renders, with
// optimistic local changes layered over server-confirmed values.
//
// Every post has a base (what the server last told us) and zero or more
// pending changes (votes, tips, receipts the user made that the server has
// not confirmed yet). Readers see base plus pending. When the server
// reports a value for a field, the base takes it and any pending change to
// that field is dropped.
package store

import (
	"sync"
	"time"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/feed"
)

// change is one unconfirmed local edit
type change struct {
	id        uint64
	upvotes   int
	downvotes int
	tips      int64
	receipt   *bool
	vote      *api.VoteDirection
}

type entry struct {
	base    feed.Post
	pending []change
}

func (e *entry) merged() feed.Post {
	p := e.base
	for _, c := range e.pending {
		p.Upvotes += c.upvotes
		p.Downvotes += c.downvotes
		p.TipsReceived += c.tips
		if c.receipt != nil {
			p.Receipted = *c.receipt
			if !p.Receipted {
				p.ReceiptedAt = nil
			}
		}
	}
	return p
}

// Store is safe for concurrent use
type Store struct {
	mu         sync.RWMutex
	order      []string
	entries    map[string]*entry
	reputation map[string]float64
	votes      map[string]api.VoteDirection
	version    uint64
	nextChange uint64
}

func New() *Store {
	return &Store{
		entries:    make(map[string]*entry),
		reputation: make(map[string]float64),
		votes:      make(map[string]api.VoteDirection),
	}
}

// AddPosts merges a batch, newest first. Unknown posts go on top in batch
// order; known posts take the incoming values as their new base. Returns
// the number of posts added.
func (s *Store) AddPosts(posts []feed.Post) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	changed := false
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		if score, ok := s.reputation[p.Author.Wallet]; ok {
			p.Reputation = score
		}
		if e, ok := s.entries[p.ID]; ok {
			if !samePost(e.base, p) {
				e.base = p
				changed = true
			}
			continue
		}
		s.entries[p.ID] = &entry{base: p}
		added = append(added, p.ID)
	}

	if len(added) > 0 {
		s.order = append(added, s.order...)
		changed = true
	}
	if changed {
		s.version++
	}
	return len(added)
}

// Posts returns the merged view, newest first
func (s *Store) Posts() []feed.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feed.Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].merged())
	}
	return out
}

// Post returns the merged view of one post
func (s *Store) Post(id string) (feed.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return feed.Post{}, false
	}
	return e.merged(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases whenever the merged view changes
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Wallets returns the distinct author wallets in display order
func (s *Store) Wallets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range s.order {
		w := s.entries[id].base.Author.Wallet
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// ValidSignatures returns the IDs that look like real on-chain signatures
func (s *Store) ValidSignatures() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if feed.IsValidSignature(id) {
			out = append(out, id)
		}
	}
	return out
}

// MyVote returns the current user's vote on a post, including pending votes
func (s *Store) MyVote(id string) api.VoteDirection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voteLocked(id)
}

func (s *Store) voteLocked(id string) api.VoteDirection {
	dir := s.votes[id]
	if e, ok := s.entries[id]; ok {
		for _, c := range e.pending {
			if c.vote != nil {
				dir = *c.vote
			}
		}
	}
	return dir
}

// Pending returns how many unconfirmed changes a post carries
func (s *Store) Pending(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return len(e.pending)
	}
	return 0
}

// UpdateReputationScores applies server scores to every post by each
// wallet. A wallet counts when at least one held post changed score; the
// score is remembered either way for posts added later.
func (s *Store) UpdateReputationScores(scores []api.ReputationScore) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, sc := range scores {
		if sc.Address == "" {
			continue
		}
		s.reputation[sc.Address] = sc.Score

		touched := false
		for _, e := range s.entries {
			if e.base.Author.Wallet == sc.Address && e.base.Reputation != sc.Score {
				e.base.Reputation = sc.Score
				touched = true
			}
		}
		if touched {
			changed++
		}
	}
	if changed > 0 {
		s.version++
	}
	return changed
}

// UpdateReceiptStatuses applies server receipt state. The server wins over
// any pending receipt toggle. Returns the number of posts whose merged view
// changed.
func (s *Store) UpdateReceiptStatuses(statuses []api.ReceiptStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, st := range statuses {
		e, ok := s.entries[st.Signature]
		if !ok {
			continue
		}
		before := e.merged()

		e.base.Receipted = st.IsReceipted
		e.base.ReceiptedAt = nil
		if st.IsReceipted {
			e.base.ReceiptedAt = st.ReceiptedAt
		}
		dropReceipt(e)

		if !sameReceipt(before, e.merged()) {
			changed++
		}
	}
	if changed > 0 {
		s.version++
	}
	return changed
}

// apply records a pending change and returns its id
func (s *Store) apply(postID string, c change) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[postID]
	if !ok {
		return 0, false
	}
	s.nextChange++
	c.id = s.nextChange
	e.pending = append(e.pending, c)
	s.version++
	return c.id, true
}

// rollback discards a pending change
func (s *Store) rollback(postID string, changeID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[postID]; ok && removeChange(e, changeID) {
		s.version++
	}
}

// confirm drops a pending change and lets fn write the server's values
// into the base
func (s *Store) confirm(postID string, changeID uint64, fn func(base *feed.Post)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[postID]
	if !ok {
		return
	}
	for _, c := range e.pending {
		if c.id == changeID && c.vote != nil {
			s.votes[postID] = *c.vote
		}
	}
	removeChange(e, changeID)
	fn(&e.base)
	s.version++
}

func removeChange(e *entry, id uint64) bool {
	for i, c := range e.pending {
		if c.id == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return true
		}
	}
	return false
}

func dropReceipt(e *entry) {
	for i := range e.pending {
		e.pending[i].receipt = nil
	}
}

func sameReceipt(a, b feed.Post) bool {
	if a.Receipted != b.Receipted {
		return false
	}
	return sameTime(a.ReceiptedAt, b.ReceiptedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func samePost(a, b feed.Post) bool {
	return a.Content == b.Content &&
		a.Author == b.Author &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.Upvotes == b.Upvotes &&
		a.Downvotes == b.Downvotes &&
		a.TipsReceived == b.TipsReceived &&
		a.Reputation == b.Reputation &&
		sameReceipt(a, b) &&
		a.QuotedID == b.QuotedID &&
		a.ThreadID == b.ThreadID
}
