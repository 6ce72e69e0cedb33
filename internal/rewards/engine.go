// rewards implements the periodic curation reward computation. Each
// sweep visits every post, scores the votes and comments that arrived
// since the post's previous round, and credits author, rewin-holders
// and curators.
package rewards

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"social/internal/models"
	"social/internal/store"
)

// DefaultAuthorShare is the fraction of a post's score paid to its
// author; the remainder goes to curators.
const DefaultAuthorShare = 0.7

// rewinCut is the slice of the author share withheld for rewin-holders.
const rewinCut = 0.10

type Engine struct {
	store       *store.Store
	authorShare float64
	log         zerolog.Logger

	now func() time.Time
}

func NewEngine(s *store.Store, authorShare float64, log zerolog.Logger) *Engine {
	if authorShare <= 0 || authorShare >= 1 {
		authorShare = DefaultAuthorShare
	}
	return &Engine{store: s, authorShare: authorShare, log: log, now: time.Now}
}

// SweepOnce runs a single reward round over all posts and returns the
// total amount credited across all wallets.
func (e *Engine) SweepOnce() (float64, error) {
	var total float64
	err := e.store.Sweep(func(users map[string]*models.User, posts map[string]*models.Post) bool {
		changed := false
		now := e.now()
		for _, p := range posts {
			credited, touched := e.rewardPost(users, p, now)
			total += credited
			changed = changed || touched
		}
		return changed
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// rewardPost applies one round to a single post. A post with no new
// activity is skipped entirely: its round counter is untouched, so
// going quiet never dilutes a later reward.
func (e *Engine) rewardPost(users map[string]*models.User, p *models.Post, now time.Time) (float64, bool) {
	since := p.LastRewardAt

	var newVotes []models.Vote
	for _, v := range p.Votes {
		if v.CreatedAt.After(since) {
			newVotes = append(newVotes, v)
		}
	}

	// Every comment contributes through its author's running total on
	// this post, old comments included; only new ones score.
	counts := map[string]int{}
	contrib := map[string]float64{} // per-author comment contribution this round
	commentTotal := 0.0
	for _, c := range p.Comments {
		counts[c.Author]++
		if c.CreatedAt.After(since) {
			v := 2 / (1 + math.Exp(-float64(counts[c.Author]-1)))
			contrib[c.Author] += v
			commentTotal += v
		}
	}

	if len(newVotes) == 0 && len(contrib) == 0 {
		return 0, false
	}

	p.RewardRounds++
	p.LastRewardAt = now

	voteSum := 0
	for _, v := range newVotes {
		if v.Upvote {
			voteSum++
		} else {
			voteSum--
		}
	}
	voteScore := math.Log(float64(max(voteSum, 0) + 1))
	commentScore := 0.0
	if commentTotal > 0 {
		commentScore = math.Log(commentTotal)
	}
	totalScore := (voteScore + commentScore) / float64(max(p.RewardRounds, 1))
	if totalScore <= 0 {
		// all-downvote rounds still consume a round but mint nothing
		return 0, true
	}

	credited := 0.0
	credited += e.payAuthorSide(users, p, e.authorShare*totalScore)
	credited += e.payCurators(users, p, newVotes, contrib, (1-e.authorShare)*totalScore)
	return credited, true
}

// payAuthorSide credits the author, withholding a cut for any other
// user currently holding the post via rewin.
func (e *Engine) payAuthorSide(users map[string]*models.User, p *models.Post, amount float64) float64 {
	var holders []*models.User
	for name, u := range users {
		if name != p.Author && u.Blog[p.ID] {
			holders = append(holders, u)
		}
	}
	credited := 0.0
	authorAmt := amount
	if len(holders) > 0 {
		withheld := amount * rewinCut
		authorAmt = amount - withheld
		each := withheld / float64(len(holders))
		for _, h := range holders {
			h.Wallet.Credit(each)
			credited += each
		}
	}
	if a, ok := users[p.Author]; ok && authorAmt > 0 {
		a.Wallet.Credit(authorAmt)
		credited += authorAmt
	}
	return credited
}

// payCurators splits the curator share across this round's voters and
// commenters, weighted by contribution. Downvoters count as curators
// with zero weight; if nobody carries weight the share is not paid.
func (e *Engine) payCurators(users map[string]*models.User, p *models.Post, votes []models.Vote, contrib map[string]float64, amount float64) float64 {
	weights := map[string]float64{}
	for _, v := range votes {
		w := 0.0
		if v.Upvote {
			w = 1
		}
		weights[v.Voter] += w
	}
	for author, c := range contrib {
		weights[author] += c
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	credited := 0.0
	for name, w := range weights {
		if w <= 0 {
			continue
		}
		u, ok := users[name]
		if !ok {
			e.log.Warn().Str("user", name).Str("post", p.ID).Msg("curator no longer exists, share dropped")
			continue
		}
		share := amount * w / sum
		u.Wallet.Credit(share)
		credited += share
	}
	return credited
}
