// wire implements the framed request/response protocol: a 4-byte
// big-endian length prefix followed by that many bytes of UTF-8 text,
// fields joined by ';'. Field 0 is the request or response discriminator.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

// Sep is the reserved field separator. Using it inside a field is a
// caller error and is not handled.
const Sep = ";"

// MaxFrame bounds a single frame; anything larger is a protocol error.
const MaxFrame = 1 << 20

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrFrameTooLarge    = errors.New("frame too large")
)

// Request verbs accepted by the dispatcher (field 0 of a request).
const (
	ReqLogin         = "login"
	ReqLogout        = "logout"
	ReqListUsers     = "list_users"
	ReqListFollowing = "list_following"
	ReqFollow        = "follow"
	ReqUnfollow      = "unfollow"
	ReqPost          = "post"
	ReqBlog          = "blog"
	ReqShowFeed      = "show_feed"
	ReqShowPost      = "show_post"
	ReqDelete        = "delete"
	ReqRewin         = "rewin"
	ReqRate          = "rate"
	ReqComment       = "comment"
	ReqWallet        = "wallet"
	ReqWalletBTC     = "wallet_btc"
	ReqExit          = "exit"
)

// Response discriminators, plus the unsolicited notification frame.
const (
	RespSuccess = "SUCCESS"
	RespError   = "ERROR"
	Notify      = "notify"
)

// Encode joins fields into a frame payload.
func Encode(fields []string) []byte {
	return []byte(strings.Join(fields, Sep))
}

// Decode splits a frame payload back into its fields. The inverse of
// Encode for any field not containing the separator.
func Decode(payload []byte) []string {
	return strings.Split(string(payload), Sep)
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, fields []string) error {
	payload := Encode(fields)
	if len(payload) > MaxFrame {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame blocks until a full frame arrives. A closed or half-read
// connection yields ErrConnectionClosed.
func ReadFrame(r io.Reader) ([]string, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, ErrConnectionClosed
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrame {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrConnectionClosed
	}
	return Decode(payload), nil
}
