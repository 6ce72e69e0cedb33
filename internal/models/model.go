package models

import "time"

// MaxTags is the maximum number of interest tags a user may register with.
const MaxTags = 5

type User struct {
	Username  string          `json:"username"`
	PassHash  string          `json:"pass_hash"`
	Tags      []string        `json:"tags"`
	Following map[string]bool `json:"following"`
	Followers map[string]bool `json:"followers"`
	Blog      map[string]bool `json:"blog"` // post ids authored or rewun
	Wallet    Wallet          `json:"wallet"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewUser(username, passHash string, tags []string) *User {
	return &User{
		Username:  username,
		PassHash:  passHash,
		Tags:      tags,
		Following: map[string]bool{},
		Followers: map[string]bool{},
		Blog:      map[string]bool{},
		CreatedAt: time.Now(),
	}
}

// SharesTag reports whether the two users have at least one tag in common.
// Tags are stored lowercase, so plain equality is enough.
func (u *User) SharesTag(other *User) bool {
	for _, t := range u.Tags {
		for _, o := range other.Tags {
			if t == o {
				return true
			}
		}
	}
	return false
}

type Post struct {
	ID           string          `json:"id"`
	Author       string          `json:"author"`
	Title        string          `json:"title"`
	Text         string          `json:"text"`
	CreatedAt    time.Time       `json:"created_at"`
	LastRewardAt time.Time       `json:"last_reward_at"`
	RewardRounds int             `json:"reward_rounds"`
	Comments     []Comment       `json:"comments"`
	Votes        map[string]Vote `json:"votes"` // keyed by voter
}

func NewPost(id, author, title, text string) *Post {
	now := time.Now()
	return &Post{
		ID:           id,
		Author:       author,
		Title:        title,
		Text:         text,
		CreatedAt:    now,
		LastRewardAt: now,
		Votes:        map[string]Vote{},
	}
}

// Upvotes counts positive votes; Downvotes the rest.
func (p *Post) Upvotes() int {
	n := 0
	for _, v := range p.Votes {
		if v.Upvote {
			n++
		}
	}
	return n
}

func (p *Post) Downvotes() int {
	return len(p.Votes) - p.Upvotes()
}

type Vote struct {
	Voter     string    `json:"voter"`
	Upvote    bool      `json:"upvote"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Transaction struct {
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type Wallet struct {
	Balance float64       `json:"balance"`
	History []Transaction `json:"history"`
}

// Credit appends a transaction, keeping the balance equal to the sum of
// the transaction values.
func (w *Wallet) Credit(value float64) {
	w.History = append(w.History, Transaction{Value: value, CreatedAt: time.Now()})
	w.Balance += value
}

// UsersSnapshot and PostsSnapshot are the two named blobs handed to the
// persistence collaborator.

type UsersSnapshot struct {
	Version int              `json:"version"`
	Users   map[string]*User `json:"users"`
}

type PostsSnapshot struct {
	Version int              `json:"version"`
	Posts   map[string]*Post `json:"posts"`
	NextID  int64            `json:"next_id"`
}
