package image

import (
	"encoding"
	"errors"
	"testing"
)

var (
	_ encoding.TextMarshaler   = (*Image)(nil)
	_ encoding.TextUnmarshaler = (*Image)(nil)
)

func TestImage_MarshalText(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name     string
		segments []Segment
		want     string
	}{
		{
			name: "empty",
			want: ":00000001ff\n",
		},
		{
			name: "single short segment",
			segments: []Segment{
				{Addr: 0x2462, Data: []byte{0xfe, 0xed, 0xfa, 0xce}},
			},
			want: ":04246200feedfacec3\n:00000001ff\n",
		},
	}

	for _, tc := range tcs {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			img := Image{Segments: tc.segments}

			got, err := img.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText: %v", err)
			}

			if string(got) != tc.want {
				t.Errorf("got: %q, want: %q", got, tc.want)
			}
		})
	}
}

func TestImage_UnmarshalText(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name      string
		input     string
		wantErr   error
		wantBytes int
	}{
		{name: "empty", input: "", wantErr: ErrEmpty},
		{name: "eof only", input: ":00000001ff\n", wantErr: ErrEmpty},
		{name: "garbage", input: "u wot mate", wantErr: ErrDecode},
		{name: "too short", input: ":0", wantErr: ErrDecode},
		{name: "one segment", input: ":04246200feedfacec3\n:00000001ff\n", wantBytes: 4},
	}

	for _, tc := range tcs {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var img Image

			err := img.UnmarshalText([]byte(tc.input))

			switch {
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("got err: %v, want: %v", err, tc.wantErr)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			default:
				var n int
				for _, seg := range img.Segments {
					n += len(seg.Data)
				}

				if n != tc.wantBytes {
					t.Errorf("got %d bytes, want %d", n, tc.wantBytes)
				}
			}
		})
	}
}

func TestImage_RoundTrip(t *testing.T) {
	t.Parallel()

	img := Image{
		Segments: []Segment{
			{Addr: 0, Data: []byte{0x13, 0x06, 0x00, 0x30}},
			{Addr: 0x300, Data: []byte{0xde, 0xad, 0xbe, 0xef}},
		},
	}

	text, err := img.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var round Image
	if err := round.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}

	if len(round.Segments) != len(img.Segments) {
		t.Fatalf("got %d segments, want %d", len(round.Segments), len(img.Segments))
	}

	for i, seg := range round.Segments {
		want := img.Segments[i]
		if seg.Addr != want.Addr {
			t.Errorf("segment %d: got addr %#x, want %#x", i, seg.Addr, want.Addr)
		}

		if string(seg.Data) != string(want.Data) {
			t.Errorf("segment %d: got data %x, want %x", i, seg.Data, want.Data)
		}
	}
}
