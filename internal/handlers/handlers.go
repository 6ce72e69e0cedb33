// handlers maps decoded wire requests to content-store and session
// calls and renders typed errors as user-facing strings. It is the only
// component that translates internal error kinds for the wire.
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"social/internal/notify"
	"social/internal/session"
	"social/internal/store"
	"social/internal/wire"
)

var requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "social_requests_total",
	Help: "Requests handled, by verb.",
}, []string{"verb"})

func init() {
	prometheus.MustRegister(requestsTotal)
}

const msgInvalidRequest = "Invalid request"

type Dispatcher struct {
	store    *store.Store
	sessions *session.Manager
	notifier notify.Notifier
	btcRate  func() float64
	log      zerolog.Logger
}

func New(st *store.Store, sessions *session.Manager, notifier notify.Notifier, btcRate func() float64, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: st, sessions: sessions, notifier: notifier, btcRate: btcRate, log: log}
}

// Handle processes one decoded request for the given connection and
// returns the response fields plus whether the connection should close.
func (d *Dispatcher) Handle(connID string, req []string) ([]string, bool) {
	if len(req) == 0 {
		return failure(nil), false
	}
	verb, args := req[0], req[1:]
	switch verb {
	case wire.ReqLogin, wire.ReqLogout, wire.ReqListUsers, wire.ReqListFollowing,
		wire.ReqFollow, wire.ReqUnfollow, wire.ReqPost, wire.ReqBlog,
		wire.ReqShowFeed, wire.ReqShowPost, wire.ReqDelete, wire.ReqRewin,
		wire.ReqRate, wire.ReqComment, wire.ReqWallet, wire.ReqWalletBTC, wire.ReqExit:
		requestsTotal.WithLabelValues(verb).Inc()
	default:
		requestsTotal.WithLabelValues("unknown").Inc()
		d.log.Debug().Str("verb", verb).Msg("unknown request verb")
		return failure(nil), false
	}

	if verb == wire.ReqLogin {
		return d.login(connID, args), false
	}
	if verb == wire.ReqExit {
		return success("bye"), true
	}

	user, ok := d.sessions.Current(connID)
	if !ok {
		return failure(session.ErrNotLoggedIn), false
	}

	switch verb {
	case wire.ReqLogout:
		if _, err := d.sessions.Logout(connID); err != nil {
			return failure(err), false
		}
		return success(), false

	case wire.ReqListUsers:
		users, err := d.store.SimilarUsers(user)
		if err != nil {
			return failure(err), false
		}
		fields := make([]string, 0, len(users))
		for _, u := range users {
			fields = append(fields, u.Username+" "+strings.Join(u.Tags, ","))
		}
		return success(fields...), false

	case wire.ReqListFollowing:
		names, err := d.store.Following(user)
		if err != nil {
			return failure(err), false
		}
		return success(names...), false

	case wire.ReqFollow:
		if len(args) != 1 {
			return failure(nil), false
		}
		if err := d.store.Follow(user, args[0]); err != nil {
			return failure(err), false
		}
		d.notifier.OnFollowerChange(args[0], user, true)
		return success(), false

	case wire.ReqUnfollow:
		if len(args) != 1 {
			return failure(nil), false
		}
		if err := d.store.Unfollow(user, args[0]); err != nil {
			return failure(err), false
		}
		d.notifier.OnFollowerChange(args[0], user, false)
		return success(), false

	case wire.ReqPost:
		if len(args) != 2 {
			return failure(nil), false
		}
		id, err := d.store.CreatePost(user, args[0], args[1])
		if err != nil {
			return failure(err), false
		}
		return success(id), false

	case wire.ReqBlog:
		posts, err := d.store.Blog(user)
		if err != nil {
			return failure(err), false
		}
		return success(summaries(posts)...), false

	case wire.ReqShowFeed:
		posts, err := d.store.Feed(user)
		if err != nil {
			return failure(err), false
		}
		return success(summaries(posts)...), false

	case wire.ReqShowPost:
		if len(args) != 1 {
			return failure(nil), false
		}
		v, err := d.store.PostDetail(args[0])
		if err != nil {
			return failure(err), false
		}
		fields := []string{v.Author, v.Title, v.Text,
			strconv.Itoa(v.Upvotes), strconv.Itoa(v.Downvotes)}
		for _, c := range v.Comments {
			fields = append(fields, c.Author+": "+c.Text)
		}
		return success(fields...), false

	case wire.ReqDelete:
		if len(args) != 1 {
			return failure(nil), false
		}
		if err := d.store.DeletePost(user, args[0]); err != nil {
			return failure(err), false
		}
		return success(), false

	case wire.ReqRewin:
		if len(args) != 1 {
			return failure(nil), false
		}
		if err := d.store.Rewin(user, args[0]); err != nil {
			return failure(err), false
		}
		return success(), false

	case wire.ReqRate:
		if len(args) != 2 {
			return failure(nil), false
		}
		var upvote bool
		switch args[1] {
		case "+1":
			upvote = true
		case "-1":
			upvote = false
		default:
			return failure(nil), false
		}
		if err := d.store.RatePost(user, args[0], upvote); err != nil {
			return failure(err), false
		}
		return success(), false

	case wire.ReqComment:
		if len(args) != 2 {
			return failure(nil), false
		}
		if err := d.store.CommentPost(user, args[0], args[1]); err != nil {
			return failure(err), false
		}
		return success(), false

	case wire.ReqWallet:
		w, err := d.store.Wallet(user)
		if err != nil {
			return failure(err), false
		}
		fields := []string{formatAmount(w.Balance)}
		for _, tx := range w.History {
			fields = append(fields, formatAmount(tx.Value)+" "+tx.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return success(fields...), false

	case wire.ReqWalletBTC:
		w, err := d.store.Wallet(user)
		if err != nil {
			return failure(err), false
		}
		rate := d.btcRate()
		return success(formatAmount(w.Balance*rate), formatAmount(rate)), false
	}
	return failure(nil), false
}

// login authenticates and binds the connection; the success payload is
// the caller's current follower set so the client can seed its local
// copy before delta notifications start arriving.
func (d *Dispatcher) login(connID string, args []string) []string {
	if len(args) != 2 {
		return failure(nil)
	}
	username, password := args[0], args[1]
	if err := d.store.CheckCredentials(username, password); err != nil {
		return failure(err)
	}
	if err := d.sessions.Login(connID, username); err != nil {
		return failure(err)
	}
	followers, err := d.store.Followers(username)
	if err != nil {
		_, _ = d.sessions.Logout(connID)
		return failure(err)
	}
	return success(followers...)
}

func success(fields ...string) []string {
	return append([]string{wire.RespSuccess}, fields...)
}

// failure renders an error for the wire; nil means a malformed request.
func failure(err error) []string {
	return []string{wire.RespError, message(err)}
}

func message(err error) string {
	switch {
	case err == nil:
		return msgInvalidRequest
	case errors.Is(err, store.ErrUsernameAlreadyExists):
		return "Username already exists"
	case errors.Is(err, store.ErrUsernameNotFound):
		return "Username not found"
	case errors.Is(err, store.ErrInvalidPassword):
		return "Wrong credentials"
	case errors.Is(err, store.ErrAlreadyFollowing):
		return "Already following"
	case errors.Is(err, store.ErrNotFollowing):
		return "Not following"
	case errors.Is(err, store.ErrFollowSelf):
		return "Cannot follow yourself"
	case errors.Is(err, store.ErrInvalidTitle):
		return "Title must be 1-20 characters"
	case errors.Is(err, store.ErrInvalidContent):
		return "Content must be 1-500 characters"
	case errors.Is(err, store.ErrTooManyTags):
		return "At most 5 tags allowed"
	case errors.Is(err, store.ErrPostNotFound):
		return "Post not found"
	case errors.Is(err, store.ErrPostNotInBlog):
		return "Post not in your blog"
	case errors.Is(err, store.ErrAlreadyInBlog):
		return "Post already in your blog"
	case errors.Is(err, store.ErrAlreadyRated):
		return "You already rated this post"
	case errors.Is(err, store.ErrRatedByAuthor):
		return "You cannot rate your own post"
	case errors.Is(err, store.ErrCommentedByAuthor):
		return "You cannot comment your own post"
	case errors.Is(err, store.ErrDatabaseNotInitialized):
		return "Server shutting down"
	case errors.Is(err, session.ErrUserAlreadyLoggedIn):
		return "User already logged in"
	case errors.Is(err, session.ErrNotLoggedIn):
		return "Not logged in"
	default:
		return err.Error()
	}
}

func summaries(posts []store.PostSummary) []string {
	fields := make([]string, 0, len(posts))
	for _, p := range posts {
		fields = append(fields, fmt.Sprintf("%s %s %q", p.ID, p.Author, p.Title))
	}
	return fields
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
