package handlers_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"social/internal/handlers"
	"social/internal/notify"
	"social/internal/session"
	"social/internal/store"
	"social/internal/wire"
)

func newDispatcher(t *testing.T) (*handlers.Dispatcher, *store.Store, *notify.Dispatcher) {
	t.Helper()
	st := store.New()
	for _, u := range []string{"alice", "bob"} {
		if err := st.CreateUser(u, "pw", []string{"go"}); err != nil {
			t.Fatal(err)
		}
	}
	nd := notify.NewDispatcher(nil, zerolog.Nop())
	d := handlers.New(st, session.NewManager(), nd, func() float64 { return 0.5 }, zerolog.Nop())
	return d, st, nd
}

func login(t *testing.T, d *handlers.Dispatcher, connID, user string) {
	t.Helper()
	resp, exit := d.Handle(connID, []string{wire.ReqLogin, user, "pw"})
	if exit || resp[0] != wire.RespSuccess {
		t.Fatalf("login %s: %v", user, resp)
	}
}

func TestUnknownVerb(t *testing.T) {
	d, _, _ := newDispatcher(t)
	resp, exit := d.Handle("c1", []string{"frobnicate"})
	if exit {
		t.Error("unknown verb must not close the connection")
	}
	if resp[0] != wire.RespError || resp[1] != "Invalid request" {
		t.Errorf("resp = %v", resp)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	d, _, _ := newDispatcher(t)
	for _, verb := range []string{wire.ReqBlog, wire.ReqFollow, wire.ReqWallet, wire.ReqLogout} {
		resp, _ := d.Handle("c1", []string{verb, "x"})
		if resp[0] != wire.RespError || resp[1] != "Not logged in" {
			t.Errorf("%s: resp = %v", verb, resp)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	d, _, _ := newDispatcher(t)

	resp, _ := d.Handle("c1", []string{wire.ReqLogin, "alice", "bad"})
	if resp[0] != wire.RespError || resp[1] != "Wrong credentials" {
		t.Errorf("bad password: %v", resp)
	}
	resp, _ = d.Handle("c1", []string{wire.ReqLogin, "ghost", "pw"})
	if resp[0] != wire.RespError || resp[1] != "Username not found" {
		t.Errorf("unknown user: %v", resp)
	}

	login(t, d, "c1", "alice")

	// the same user on a second connection is rejected
	resp, _ = d.Handle("c2", []string{wire.ReqLogin, "alice", "pw"})
	if resp[0] != wire.RespError || resp[1] != "User already logged in" {
		t.Errorf("double login: %v", resp)
	}

	resp, _ = d.Handle("c1", []string{wire.ReqLogout})
	if resp[0] != wire.RespSuccess {
		t.Errorf("logout: %v", resp)
	}
	resp, _ = d.Handle("c2", []string{wire.ReqLogin, "alice", "pw"})
	if resp[0] != wire.RespSuccess {
		t.Errorf("relogin: %v", resp)
	}
}

func TestLoginPayloadIsFollowerSet(t *testing.T) {
	d, st, _ := newDispatcher(t)
	if err := st.Follow("bob", "alice"); err != nil {
		t.Fatal(err)
	}
	resp, _ := d.Handle("c1", []string{wire.ReqLogin, "alice", "pw"})
	if resp[0] != wire.RespSuccess || len(resp) != 2 || resp[1] != "bob" {
		t.Errorf("login payload = %v, want [SUCCESS bob]", resp)
	}
}

func TestPostBlogFeed(t *testing.T) {
	d, _, _ := newDispatcher(t)
	login(t, d, "c1", "alice")
	login(t, d, "c2", "bob")

	resp, _ := d.Handle("c1", []string{wire.ReqPost, "Hi", "Hello world"})
	if resp[0] != wire.RespSuccess || resp[1] != "1" {
		t.Fatalf("post: %v", resp)
	}

	resp, _ = d.Handle("c2", []string{wire.ReqFollow, "alice"})
	if resp[0] != wire.RespSuccess {
		t.Fatalf("follow: %v", resp)
	}

	resp, _ = d.Handle("c2", []string{wire.ReqShowFeed})
	if resp[0] != wire.RespSuccess || len(resp) != 2 {
		t.Fatalf("feed: %v", resp)
	}
	if !strings.Contains(resp[1], "alice") || !strings.Contains(resp[1], `"Hi"`) {
		t.Errorf("feed line = %q", resp[1])
	}

	resp, _ = d.Handle("c1", []string{wire.ReqBlog})
	if resp[0] != wire.RespSuccess || len(resp) != 2 {
		t.Errorf("blog: %v", resp)
	}
}

func TestShowPostAndInteractions(t *testing.T) {
	d, _, _ := newDispatcher(t)
	login(t, d, "c1", "alice")
	login(t, d, "c2", "bob")
	d.Handle("c1", []string{wire.ReqPost, "Hi", "Hello world"})

	resp, _ := d.Handle("c2", []string{wire.ReqRate, "1", "+1"})
	if resp[0] != wire.RespSuccess {
		t.Fatalf("rate: %v", resp)
	}
	resp, _ = d.Handle("c2", []string{wire.ReqRate, "1", "up"})
	if resp[0] != wire.RespError || resp[1] != "Invalid request" {
		t.Errorf("bad rate value: %v", resp)
	}
	resp, _ = d.Handle("c2", []string{wire.ReqComment, "1", "nice"})
	if resp[0] != wire.RespSuccess {
		t.Fatalf("comment: %v", resp)
	}

	resp, _ = d.Handle("c2", []string{wire.ReqShowPost, "1"})
	// author, title, text, upvotes, downvotes, one comment
	want := []string{wire.RespSuccess, "alice", "Hi", "Hello world", "1", "0", "bob: nice"}
	if len(resp) != len(want) {
		t.Fatalf("show_post: %v", resp)
	}
	for i := range want {
		if resp[i] != want[i] {
			t.Errorf("show_post[%d] = %q, want %q", i, resp[i], want[i])
		}
	}

	resp, _ = d.Handle("c1", []string{wire.ReqRate, "1", "+1"})
	if resp[0] != wire.RespError || resp[1] != "You cannot rate your own post" {
		t.Errorf("author rate: %v", resp)
	}
}

func TestFollowEmitsNotification(t *testing.T) {
	d, _, nd := newDispatcher(t)
	ch := nd.Subscribe("alice")
	login(t, d, "c1", "bob")

	resp, _ := d.Handle("c1", []string{wire.ReqFollow, "alice"})
	if resp[0] != wire.RespSuccess {
		t.Fatalf("follow: %v", resp)
	}
	ev := <-ch
	if ev.Follower != "bob" || !ev.Added {
		t.Errorf("event = %+v", ev)
	}

	d.Handle("c1", []string{wire.ReqUnfollow, "alice"})
	ev = <-ch
	if ev.Follower != "bob" || ev.Added {
		t.Errorf("event = %+v", ev)
	}
}

func TestWallet(t *testing.T) {
	d, _, _ := newDispatcher(t)
	login(t, d, "c1", "alice")

	resp, _ := d.Handle("c1", []string{wire.ReqWallet})
	if resp[0] != wire.RespSuccess || resp[1] != "0.000000" {
		t.Errorf("wallet: %v", resp)
	}
	resp, _ = d.Handle("c1", []string{wire.ReqWalletBTC})
	// zero balance at rate 0.5
	if resp[0] != wire.RespSuccess || resp[1] != "0.000000" || resp[2] != "0.500000" {
		t.Errorf("wallet_btc: %v", resp)
	}
}

func TestExit(t *testing.T) {
	d, _, _ := newDispatcher(t)
	resp, exit := d.Handle("c1", []string{wire.ReqExit})
	if !exit {
		t.Error("exit must close the connection")
	}
	if resp[0] != wire.RespSuccess {
		t.Errorf("exit: %v", resp)
	}
}

func TestMalformedArgs(t *testing.T) {
	d, _, _ := newDispatcher(t)
	login(t, d, "c1", "alice")
	for _, req := range [][]string{
		{wire.ReqFollow},
		{wire.ReqPost, "only-title"},
		{wire.ReqRate, "1"},
		{wire.ReqComment, "1"},
		{wire.ReqShowPost},
	} {
		resp, _ := d.Handle("c1", req)
		if resp[0] != wire.RespError || resp[1] != "Invalid request" {
			t.Errorf("%v: resp = %v", req, resp)
		}
	}
}
