// store is the locked in-memory database of users, posts, follow edges
// and wallets. Two read-write locks protect it: one for the user table,
// one for the post table. Whenever both are needed they are acquired
// users first, then posts; the reward sweep uses the same order.
package store

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"social/internal/models"
)

const (
	maxTitleLen   = 20
	maxContentLen = 500
)

type Store struct {
	usersMu sync.RWMutex
	postsMu sync.RWMutex

	users  map[string]*models.User
	posts  map[string]*models.Post
	nextID int64

	usersDirty atomic.Bool
	postsDirty atomic.Bool
	closed     atomic.Bool
}

func New() *Store {
	return &Store{
		users: map[string]*models.User{},
		posts: map[string]*models.Post{},
	}
}

// Load installs previously persisted snapshots. Nil maps are treated as
// load-or-create-empty.
func (s *Store) Load(users models.UsersSnapshot, posts models.PostsSnapshot) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.postsMu.Lock()
	defer s.postsMu.Unlock()

	if users.Users != nil {
		s.users = users.Users
	}
	for _, u := range s.users {
		if u.Following == nil {
			u.Following = map[string]bool{}
		}
		if u.Followers == nil {
			u.Followers = map[string]bool{}
		}
		if u.Blog == nil {
			u.Blog = map[string]bool{}
		}
	}
	if posts.Posts != nil {
		s.posts = posts.Posts
	}
	for _, p := range s.posts {
		if p.Votes == nil {
			p.Votes = map[string]models.Vote{}
		}
	}
	s.nextID = posts.NextID
}

// Close marks the store uninitialized; every later operation fails with
// ErrDatabaseNotInitialized instead of touching freed state.
func (s *Store) Close() {
	s.closed.Store(true)
}

func (s *Store) ready() error {
	if s.closed.Load() {
		return ErrDatabaseNotInitialized
	}
	return nil
}

// ---- users ----

func (s *Store) CreateUser(username, password string, tags []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if password == "" {
		return ErrInvalidPassword
	}
	if len(tags) > models.MaxTags {
		return ErrTooManyTags
	}
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			clean = append(clean, t)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, exists := s.users[username]; exists {
		return ErrUsernameAlreadyExists
	}
	s.users[username] = models.NewUser(username, string(hash), clean)
	s.usersDirty.Store(true)
	return nil
}

// CheckCredentials returns nil iff the password matches. A wrong password
// is ErrInvalidPassword, never a panic or an unknown error.
func (s *Store) CheckCredentials(username, password string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.RLock()
	u, ok := s.users[username]
	s.usersMu.RUnlock()
	if !ok {
		return ErrUsernameNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)) != nil {
		return ErrInvalidPassword
	}
	return nil
}

func (s *Store) Follow(user, target string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if user == target {
		return ErrFollowSelf
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[user]
	if !ok {
		return ErrUsernameNotFound
	}
	t, ok := s.users[target]
	if !ok {
		return ErrUsernameNotFound
	}
	if u.Following[target] {
		return ErrAlreadyFollowing
	}
	u.Following[target] = true
	t.Followers[user] = true
	s.usersDirty.Store(true)
	return nil
}

func (s *Store) Unfollow(user, target string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if user == target {
		return ErrFollowSelf
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[user]
	if !ok {
		return ErrUsernameNotFound
	}
	t, ok := s.users[target]
	if !ok {
		return ErrUsernameNotFound
	}
	if !u.Following[target] {
		return ErrNotFollowing
	}
	delete(u.Following, target)
	delete(t.Followers, user)
	s.usersDirty.Store(true)
	return nil
}

func (s *Store) Following(user string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return nil, ErrUsernameNotFound
	}
	return sortedKeys(u.Following), nil
}

func (s *Store) Followers(user string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return nil, ErrUsernameNotFound
	}
	return sortedKeys(u.Followers), nil
}

// UserInfo is what list_users shows: a username plus its tags.
type UserInfo struct {
	Username string
	Tags     []string
}

// SimilarUsers returns users sharing at least one tag with user,
// excluding user itself and anyone already followed, lexicographically.
func (s *Store) SimilarUsers(user string) ([]UserInfo, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return nil, ErrUsernameNotFound
	}
	var out []UserInfo
	for name, other := range s.users {
		if name == user || u.Following[name] {
			continue
		}
		if u.SharesTag(other) {
			out = append(out, UserInfo{Username: name, Tags: other.Tags})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) Wallet(user string) (models.Wallet, error) {
	if err := s.ready(); err != nil {
		return models.Wallet{}, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return models.Wallet{}, ErrUsernameNotFound
	}
	w := models.Wallet{Balance: u.Wallet.Balance}
	w.History = append(w.History, u.Wallet.History...)
	return w, nil
}

// ---- posts ----

func (s *Store) CreatePost(author, title, text string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	// limits count characters, not bytes
	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleLen {
		return "", ErrInvalidTitle
	}
	if n := utf8.RuneCountInString(text); n < 1 || n > maxContentLen {
		return "", ErrInvalidContent
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[author]
	if !ok {
		return "", ErrUsernameNotFound
	}

	s.postsMu.Lock()
	defer s.postsMu.Unlock()
	s.nextID++
	id := strconv.FormatInt(s.nextID, 10)
	s.posts[id] = models.NewPost(id, author, title, text)
	u.Blog[id] = true
	s.usersDirty.Store(true)
	s.postsDirty.Store(true)
	return id, nil
}

// DeletePost undoes a rewin when the requester is not the author, and
// removes the post everywhere when they are. Rewards not yet computed
// for recent activity die with the post.
func (s *Store) DeletePost(requester, postID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[requester]
	if !ok {
		return ErrUsernameNotFound
	}

	s.postsMu.Lock()
	defer s.postsMu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return ErrPostNotFound
	}
	if !u.Blog[postID] {
		return ErrPostNotInBlog
	}
	if requester != p.Author {
		delete(u.Blog, postID)
		s.usersDirty.Store(true)
		return nil
	}
	delete(s.posts, postID)
	for _, other := range s.users {
		delete(other.Blog, postID)
	}
	s.usersDirty.Store(true)
	s.postsDirty.Store(true)
	return nil
}

func (s *Store) Rewin(user, postID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[user]
	if !ok {
		return ErrUsernameNotFound
	}

	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	if _, ok := s.posts[postID]; !ok {
		return ErrPostNotFound
	}
	if u.Blog[postID] {
		return ErrAlreadyInBlog
	}
	u.Blog[postID] = true
	s.usersDirty.Store(true)
	return nil
}

func (s *Store) RatePost(voter, postID string, upvote bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.RLock()
	_, ok := s.users[voter]
	s.usersMu.RUnlock()
	if !ok {
		return ErrUsernameNotFound
	}

	s.postsMu.Lock()
	defer s.postsMu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return ErrPostNotFound
	}
	if p.Author == voter {
		return ErrRatedByAuthor
	}
	if _, rated := p.Votes[voter]; rated {
		return ErrAlreadyRated
	}
	p.Votes[voter] = models.Vote{Voter: voter, Upvote: upvote, CreatedAt: time.Now()}
	s.postsDirty.Store(true)
	return nil
}

func (s *Store) CommentPost(author, postID, text string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(text); n < 1 || n > maxContentLen {
		return ErrInvalidContent
	}
	s.usersMu.RLock()
	_, ok := s.users[author]
	s.usersMu.RUnlock()
	if !ok {
		return ErrUsernameNotFound
	}

	s.postsMu.Lock()
	defer s.postsMu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return ErrPostNotFound
	}
	if p.Author == author {
		return ErrCommentedByAuthor
	}
	p.Comments = append(p.Comments, models.Comment{Author: author, Text: text, CreatedAt: time.Now()})
	s.postsDirty.Store(true)
	return nil
}

// PostSummary is the blog/feed line item.
type PostSummary struct {
	ID        string
	Author    string
	Title     string
	CreatedAt int64 // unix nanos, newest first in feeds
}

func (s *Store) Blog(user string) ([]PostSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return nil, ErrUsernameNotFound
	}
	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	return s.summarizeLocked(u.Blog), nil
}

// Feed is the de-duplicated union of the blogs of everyone user follows,
// newest first.
func (s *Store) Feed(user string) ([]PostSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[user]
	if !ok {
		return nil, ErrUsernameNotFound
	}
	ids := map[string]bool{}
	for followed := range u.Following {
		if f, ok := s.users[followed]; ok {
			for id := range f.Blog {
				ids[id] = true
			}
		}
	}
	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	return s.summarizeLocked(ids), nil
}

func (s *Store) summarizeLocked(ids map[string]bool) []PostSummary {
	out := make([]PostSummary, 0, len(ids))
	for id := range ids {
		p, ok := s.posts[id]
		if !ok {
			continue
		}
		out = append(out, PostSummary{
			ID:        p.ID,
			Author:    p.Author,
			Title:     p.Title,
			CreatedAt: p.CreatedAt.UnixNano(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// PostView resolves a post for show_post.
type PostView struct {
	ID        string
	Author    string
	Title     string
	Text      string
	Upvotes   int
	Downvotes int
	Comments  []models.Comment
}

func (s *Store) PostDetail(postID string) (PostView, error) {
	if err := s.ready(); err != nil {
		return PostView{}, err
	}
	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return PostView{}, ErrPostNotFound
	}
	v := PostView{
		ID:        p.ID,
		Author:    p.Author,
		Title:     p.Title,
		Text:      p.Text,
		Upvotes:   p.Upvotes(),
		Downvotes: p.Downvotes(),
	}
	v.Comments = append(v.Comments, p.Comments...)
	return v, nil
}

// ---- persistence and sweep hooks ----

// Sweep runs fn over the raw tables under both write locks, users first.
// The reward engine is its only caller. fn reports whether it changed
// anything, which marks both tables dirty.
func (s *Store) Sweep(fn func(users map[string]*models.User, posts map[string]*models.Post) bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.postsMu.Lock()
	defer s.postsMu.Unlock()
	if fn(s.users, s.posts) {
		s.usersDirty.Store(true)
		s.postsDirty.Store(true)
	}
	return nil
}

// Dirty reports whether either table changed since the last ClearDirty.
func (s *Store) Dirty() bool {
	return s.usersDirty.Load() || s.postsDirty.Load()
}

// MarkDirty re-arms the flag after a failed save.
func (s *Store) MarkDirty() {
	s.usersDirty.Store(true)
	s.postsDirty.Store(true)
}

// ClearDirty is called by the persistence collaborator just before it
// snapshots; a mutation racing the save simply re-arms the flag.
func (s *Store) ClearDirty() {
	s.usersDirty.Store(false)
	s.postsDirty.Store(false)
}

// Snapshot runs fn with both snapshots under read locks so the
// collaborator can serialize a consistent view.
func (s *Store) Snapshot(fn func(models.UsersSnapshot, models.PostsSnapshot) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	return fn(
		models.UsersSnapshot{Version: 1, Users: s.users},
		models.PostsSnapshot{Version: 1, Posts: s.posts, NextID: s.nextID},
	)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
