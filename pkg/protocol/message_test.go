package protocol

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
	}{
		{"viewport message", TypeViewport, ViewportData{Width: 1080, Height: 1920}},
		{"tap message", TypeTap, TapData{X: 10, Y: 20}},
		{"nil data", TypePing, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestParseFrameMessage(t *testing.T) {
	raw := []byte(`{"type":"frame","ts":1,"data":{"sets":[[{"x":0.5,"y":0.25}]],"image_width":480,"image_height":640,"seq":7}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	frame, err := msg.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}

	want := &landmark.Frame{
		Sets:        []landmark.Set{{{X: 0.5, Y: 0.25}}},
		ImageWidth:  480,
		ImageHeight: 640,
		Seq:         7,
	}
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Errorf("GetFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMessageRejects(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"motor"}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type error = %v, want ErrUnknownType", err)
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestGetFrameMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"zero image size", `{"type":"frame","data":{"sets":[[{"x":0.5,"y":0.5}]],"image_width":0,"image_height":640}}`},
		{"empty subject", `{"type":"frame","data":{"sets":[[]],"image_width":480,"image_height":640}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseMessage() error = %v", err)
			}
			if _, err := msg.GetFrame(); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("GetFrame() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestMsgpackFrame(t *testing.T) {
	in := &landmark.Frame{
		Sets: []landmark.Set{
			{{X: 0.1, Y: 0.2, Z: -0.01}, {X: 0.3, Y: 0.4}},
		},
		ImageWidth:  640,
		ImageHeight: 480,
		Seq:         3,
		SourceID:    "sidecar",
	}

	b, err := EncodeFrame(in)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	out, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("DecodeFrame() mismatch (-want +got):\n%s", diff)
	}

	if _, err := DecodeFrame([]byte{0xc1}); err == nil {
		t.Error("expected error for invalid msgpack")
	}
}

func TestValidateFrameNonFinite(t *testing.T) {
	frameWith := func(p landmark.Point) *landmark.Frame {
		return &landmark.Frame{
			Sets:        []landmark.Set{{{X: 0.5, Y: 0.5}, p}},
			ImageWidth:  640,
			ImageHeight: 480,
		}
	}

	tests := []struct {
		name    string
		p       landmark.Point
		wantErr bool
	}{
		{"finite", landmark.Point{X: 0.1, Y: 1.5, Z: -0.2}, false},
		{"huge but finite", landmark.Point{X: 1e308, Y: -1e308}, false},
		{"NaN x", landmark.Point{X: math.NaN(), Y: 0.5}, true},
		{"NaN y", landmark.Point{X: 0.5, Y: math.NaN()}, true},
		{"NaN z", landmark.Point{X: 0.5, Y: 0.5, Z: math.NaN()}, true},
		{"+Inf x", landmark.Point{X: math.Inf(1), Y: 0.5}, true},
		{"-Inf y", landmark.Point{X: 0.5, Y: math.Inf(-1)}, true},
		{"+Inf z", landmark.Point{X: 0.5, Y: 0.5, Z: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrame(frameWith(tt.p))
			if tt.wantErr != (err != nil) {
				t.Fatalf("ValidateFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("error %v does not wrap ErrMalformedFrame", err)
			}
		})
	}
}
