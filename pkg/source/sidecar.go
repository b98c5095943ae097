package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/protocol"
)

// SidecarConfig describes a landmark helper process. The process writes
// msgpack frames to stdout, each preceded by a 4-byte big-endian length.
type SidecarConfig struct {
	Command      string
	Args         []string
	Env          []string
	RestartDelay time.Duration
}

// Sidecar runs a detector helper (for example a MediaPipe process) and
// publishes the frames it emits.
type Sidecar struct {
	cfg SidecarConfig
	id  string
	out *Dispatcher

	framesRead    atomic.Uint64
	framesInvalid atomic.Uint64
	restarts      atomic.Uint64
}

// SidecarStats is a snapshot of sidecar counters.
type SidecarStats struct {
	ID            string `json:"id"`
	FramesRead    uint64 `json:"frames_read"`
	FramesInvalid uint64 `json:"frames_invalid"`
	Restarts      uint64 `json:"restarts"`
}

// NewSidecar creates a sidecar source publishing into out.
func NewSidecar(cfg SidecarConfig, out *Mailbox) (*Sidecar, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("sidecar command is required")
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	id := "sidecar-" + uuid.NewString()[:8]
	return &Sidecar{
		cfg: cfg,
		id:  id,
		out: NewDispatcher(out, nil, id),
	}, nil
}

// ID returns the source ID stamped on published frames.
func (s *Sidecar) ID() string {
	return s.id
}

// Stats returns a snapshot of the sidecar counters.
func (s *Sidecar) Stats() SidecarStats {
	return SidecarStats{
		ID:            s.id,
		FramesRead:    s.framesRead.Load(),
		FramesInvalid: s.framesInvalid.Load(),
		Restarts:      s.restarts.Load(),
	}
}

// Run starts the helper and restarts it after it exits, until ctx ends.
func (s *Sidecar) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("sidecar exited, restarting",
			"component", "source", "source_id", s.id, "error", err, "delay", s.cfg.RestartDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.RestartDelay):
		}
		s.restarts.Add(1)
	}
}

func (s *Sidecar) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start sidecar: %w", err)
	}
	log.Info("sidecar started", "component", "source", "source_id", s.id, "pid", cmd.Process.Pid, "command", s.cfg.Command)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		s.logStderr(stderr)
	}()

	readErr := ReadFrames(stdout, func(f *landmark.Frame, err error) {
		if err != nil {
			s.framesInvalid.Add(1)
			log.Warn("dropping invalid sidecar frame", "component", "source", "source_id", s.id, "error", err)
			return
		}
		s.framesRead.Add(1)
		s.out.Publish(f)
	})

	if readErr != nil {
		// Stream is out of sync; restart the helper.
		_ = cmd.Process.Kill()
	}
	<-stderrDone
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	return waitErr
}

func (s *Sidecar) logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Info("sidecar stderr", "component", "source", "source_id", s.id, "line", sc.Text())
	}
}

// ReadFrames reads length-prefixed msgpack frames from r until EOF.
// Frames that fail to decode are passed to fn with an error and skipped.
// A length beyond protocol.MaxFrameSize or a truncated frame ends the
// stream with an error.
func ReadFrames(r io.Reader, fn func(*landmark.Frame, error)) error {
	lengthBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, lengthBuf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read length prefix: %w", err)
		}

		n := binary.BigEndian.Uint32(lengthBuf)
		if n > protocol.MaxFrameSize {
			return fmt.Errorf("%w: length prefix %d exceeds limit", protocol.ErrMalformedFrame, n)
		}

		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("failed to read frame (expected %d bytes): %w", n, err)
		}

		fn(protocol.DecodeFrame(buf))
	}
}

// WriteFrame writes f to w with the length prefix ReadFrames expects.
func WriteFrame(w io.Writer, f *landmark.Frame) error {
	b, err := protocol.EncodeFrame(f)
	if err != nil {
		return err
	}
	prefix := make([]byte, 4, 4+len(b))
	binary.BigEndian.PutUint32(prefix, uint32(len(b)))
	_, err = w.Write(append(prefix, b...))
	return err
}
