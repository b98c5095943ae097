package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

func TestReadFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame(1)))

	// valid length, garbage payload
	buf.Write([]byte{0, 0, 0, 1, 0xc1})

	require.NoError(t, WriteFrame(&buf, frame(2)))

	var seqs []uint64
	var bad int
	err := ReadFrames(&buf, func(f *landmark.Frame, err error) {
		if err != nil {
			bad++
			return
		}
		seqs = append(seqs, f.Seq)
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Equal(t, 1, bad)
}

func TestReadFramesOversized(t *testing.T) {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, protocol.MaxFrameSize+1)

	err := ReadFrames(bytes.NewReader(prefix), func(*landmark.Frame, error) {
		t.Fatal("callback should not run")
	})
	assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
}

func TestReadFramesTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame(1)))
	truncated := buf.Bytes()[:buf.Len()-2]

	err := ReadFrames(bytes.NewReader(truncated), func(*landmark.Frame, error) {})
	assert.Error(t, err)
}

func TestNewSidecarRequiresCommand(t *testing.T) {
	_, err := NewSidecar(SidecarConfig{}, NewMailbox())
	assert.Error(t, err)
}

// TestSidecarHelperProcess is not a real test. It is the helper process
// spawned by TestSidecarRun.
func TestSidecarHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_SIDECAR_HELPER") != "1" {
		return
	}
	for i := uint64(1); i <= 3; i++ {
		if err := WriteFrame(os.Stdout, frame(i)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Fprintln(os.Stderr, "helper done")
	os.Exit(0)
}

func TestSidecarRun(t *testing.T) {
	mb := NewMailbox()
	s, err := NewSidecar(SidecarConfig{
		Command:      os.Args[0],
		Args:         []string{"-test.run=TestSidecarHelperProcess"},
		Env:          []string{"GO_WANT_SIDECAR_HELPER=1"},
		RestartDelay: time.Hour,
	}, mb)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Stats().FramesRead == 3 }, 5*time.Second, 10*time.Millisecond)

	f, err := mb.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, s.ID(), f.SourceID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
