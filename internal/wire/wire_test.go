package wire

import (
	"bytes"
	"reflect"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := [][]string{
		{"login", "alice", "secret"},
		{"SUCCESS"},
		{"SUCCESS", "1", "alice", `"Hi"`},
		{"comment", "7", "nice post, well done"},
		{""},
	}
	var buf bytes.Buffer
	for _, fields := range cases {
		if err := WriteFrame(&buf, fields); err != nil {
			t.Fatalf("write %v: %v", fields, err)
		}
	}
	for _, want := range cases {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip: got %v, want %v", got, want)
		}
	}
}

func TestReadFrameClosed(t *testing.T) {
	// empty reader: connection closed before the header
	if _, err := ReadFrame(bytes.NewReader(nil)); err != ErrConnectionClosed {
		t.Errorf("empty: got %v, want ErrConnectionClosed", err)
	}

	// header promises more bytes than arrive
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []string{"post", "title", "text"}); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, err := ReadFrame(bytes.NewReader(truncated)); err != ErrConnectionClosed {
		t.Errorf("truncated: got %v, want ErrConnectionClosed", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := ReadFrame(bytes.NewReader(header)); err != ErrFrameTooLarge {
		t.Errorf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	fields := []string{"rate", "42", "+1"}
	if got := Decode(Encode(fields)); !reflect.DeepEqual(got, fields) {
		t.Errorf("got %v, want %v", got, fields)
	}
}
