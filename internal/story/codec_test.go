package story_test

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/jmerrifield20/starnotary/internal/story"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "single char", in: "A", want: "41"},
		{name: "zero padded", in: "\n", want: "0a"},
		{name: "url", in: "Found star using https://www.google.com/sky/",
			want: "466f756e642073746172207573696e672068747470733a2f2f7777772e676f6f676c652e636f6d2f736b792f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := story.Encode(tt.in); got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "simple", in: "6869", want: "hi"},
		{name: "uppercase digits", in: "4A4b", want: "JK"},
		{name: "stops at terminator", in: "68690041", want: "hi"},
		{name: "leading terminator", in: "0041", want: ""},
		{name: "terminator only on pair boundary", in: "6100", want: "a"},
		{name: "odd length", in: "686", wantErr: true},
		{name: "invalid digit", in: "zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := story.Decode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode_nulAsymmetry(t *testing.T) {
	src := "ab\x00cd"
	enc := story.Encode(src)
	if enc != "6162006364" {
		t.Fatalf("Encode = %q", enc)
	}
	dec, err := story.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if dec != "ab" {
		t.Errorf("Decode stops at NUL: got %q, want %q", dec, "ab")
	}
}

func TestPrepare(t *testing.T) {
	long := strings.Repeat("x", 600)

	tests := []struct {
		name    string
		codec   story.Codec
		in      string
		wantLen int // decoded length on success
		wantErr error
	}{
		{name: "empty", codec: story.NewCodec(0, story.Reject), in: "", wantErr: story.ErrEmpty},
		{name: "ok", codec: story.NewCodec(0, story.Reject), in: "hello", wantLen: 5},
		{name: "exactly max", codec: story.NewCodec(0, story.Reject), in: long[:500], wantLen: 500},
		{name: "too long rejected", codec: story.NewCodec(0, story.Reject), in: long, wantErr: story.ErrTooLong},
		{name: "too long truncated", codec: story.NewCodec(0, story.Truncate), in: long, wantLen: 500},
		{name: "non ascii", codec: story.NewCodec(0, story.Truncate), in: "café", wantErr: story.ErrNotASCII},
		{name: "non ascii past the cut", codec: story.NewCodec(0, story.Truncate), in: long + "é", wantErr: story.ErrNotASCII},
		{name: "length checked before ascii", codec: story.NewCodec(0, story.Reject), in: long + "é", wantErr: story.ErrTooLong},
		{name: "custom limit", codec: story.NewCodec(3, story.Reject), in: "abcd", wantErr: story.ErrTooLong},
		{name: "limit counts characters", codec: story.NewCodec(3, story.Reject), in: "éé", wantErr: story.ErrNotASCII},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.codec.Prepare(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Prepare error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			dec, err := story.Decode(enc)
			if err != nil {
				t.Fatal(err)
			}
			if len(dec) != tt.wantLen {
				t.Errorf("decoded length = %d, want %d", len(dec), tt.wantLen)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]story.Policy{"reject": story.Reject, " Truncate ": story.Truncate} {
		got, err := story.ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := story.ParsePolicy("drop"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.StringMatching(`[\x01-\x7f]{0,500}`).Draw(rt, "s")
		enc := story.Encode(s)
		dec, err := story.Decode(enc)
		if err != nil {
			rt.Fatalf("Decode(%q): %v", enc, err)
		}
		if got := story.Encode(dec); got != enc {
			rt.Fatalf("Encode(Decode(Encode(%q))) = %q, want %q", s, got, enc)
		}
	})
}
