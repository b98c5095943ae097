package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-follow/internal/config"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/source"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/transport"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, flagOverrides{
		mode:   "hand3d",
		serial: "/dev/ttyUSB1",
		baud:   115200,
		port:   9000,
		camera: -1,
	})

	assert.Equal(t, "hand3d", cfg.Mode)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Transport.Device)
	assert.Equal(t, 115200, cfg.Transport.BaudRate)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "ws", cfg.Source.Kind, "unset flags keep config values")
	assert.Equal(t, 0, cfg.Source.CameraDevice)
}

func TestTrackingConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "hand3d"
	tc, err := trackingConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, tracking.ModeHand3D, tc.Mode)
	assert.Equal(t, 3, tc.Dims)

	cfg.Source.Kind = "camera"
	tc, err = trackingConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, tracking.ModeFace, tc.Mode)
	assert.Equal(t, []int{landmark.YuNetNoseTip}, tc.AnchorIndices)

	cfg.Mode = "paw"
	_, err = trackingConfig(cfg)
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Device = "/dev/ttyUSB0"
	link, device, err := newTransport(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transport.Serial{}, link)
	assert.Equal(t, "/dev/ttyUSB0", device)

	cfg.Transport.Kind = "mqtt"
	cfg.Transport.MQTT.Broker = "tcp://broker:1883"
	link, device, err = newTransport(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transport.MQTT{}, link)
	assert.Equal(t, "tcp://broker:1883", device)

	cfg.Transport.Kind = "can"
	_, _, err = newTransport(cfg)
	var cfgErr *config.Error
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNewProducer(t *testing.T) {
	mb := source.NewMailbox()
	cfg := config.Default()

	p, cam, cleanup, err := newProducer(cfg, mb, nil)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, p, "ws source is served by the web server")
	assert.Nil(t, cam)

	cfg.Source.Kind = "remote"
	cfg.Source.RemoteURL = "ws://producer:9000/landmarks"
	p, _, _, err = newProducer(cfg, mb, nil)
	require.NoError(t, err)
	assert.IsType(t, &source.Remote{}, p)

	cfg.Source.Kind = "sidecar"
	cfg.Source.SidecarCmd = "python3"
	p, _, _, err = newProducer(cfg, mb, nil)
	require.NoError(t, err)
	assert.IsType(t, &source.Sidecar{}, p)

	cfg.Source.RemoteURL = ""
	cfg.Source.Kind = "remote"
	_, _, _, err = newProducer(cfg, mb, nil)
	assert.Error(t, err)
}
