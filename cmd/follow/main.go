// follow - landmark-driven pan/tilt controller
//
// Consumes hand or face landmark frames, locks onto one subject and streams
// its position to an actuator as "x,y\n" control lines.
//
// Usage:
//
//	follow -serial /dev/ttyUSB0                     # hand mode, browser producer
//	follow -mode hand3d -serial /dev/ttyACM0        # hand + depth, filtered
//	follow -source camera -model yunet.onnx -serial /dev/ttyUSB0
//	follow -transport mqtt -mqtt tcp://broker:1883  # Wi-Fi actuator
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-follow/internal/config"
	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/camera"
	"github.com/teslashibe/go-follow/pkg/landmark"
	"github.com/teslashibe/go-follow/pkg/source"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/tracking/detection"
	"github.com/teslashibe/go-follow/pkg/transport"
	"github.com/teslashibe/go-follow/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	mode := flag.String("mode", "", "Tracking mode: hand, face, hand3d")
	sourceKind := flag.String("source", "", "Frame source: ws, remote, sidecar, camera")
	remoteURL := flag.String("remote-url", "", "WebSocket URL of a remote producer")
	sidecarCmd := flag.String("sidecar-cmd", "", "Detector process writing msgpack frames to stdout")
	cameraDevice := flag.Int("camera", -1, "Camera device index (camera source)")
	modelPath := flag.String("model", "", "YuNet ONNX model (camera source)")
	transportKind := flag.String("transport", "", "Actuator link: serial, http, mqtt")
	serialPort := flag.String("serial", "", "Serial device path")
	baud := flag.Int("baud", 0, "Serial baud rate")
	deviceURL := flag.String("http", "", "Actuator HTTP endpoint")
	broker := flag.String("mqtt", "", "MQTT broker URL")
	port := flag.Int("port", 0, "Control API port")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	staticDir := flag.String("static", "", "Dashboard assets directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	applyFlags(cfg, flagOverrides{
		mode: *mode, source: *sourceKind, remoteURL: *remoteURL, sidecarCmd: *sidecarCmd,
		camera: *cameraDevice, model: *modelPath, transport: *transportKind,
		serial: *serialPort, baud: *baud, deviceURL: *deviceURL, broker: *broker,
		port: *port, logLevel: *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *staticDir); err != nil {
		log.Error("follow exited", "error", err)
		os.Exit(1)
	}
}

type flagOverrides struct {
	mode, source, remoteURL, sidecarCmd string
	camera                              int
	model, transport, serial            string
	baud                                int
	deviceURL, broker                   string
	port                                int
	logLevel                            string
}

// applyFlags overrides cfg with every flag that was set.
func applyFlags(cfg *config.Config, f flagOverrides) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Mode, f.mode)
	setString(&cfg.LogLevel, f.logLevel)
	setString(&cfg.Source.Kind, f.source)
	setString(&cfg.Source.RemoteURL, f.remoteURL)
	setString(&cfg.Source.SidecarCmd, f.sidecarCmd)
	setString(&cfg.Source.ModelPath, f.model)
	setString(&cfg.Transport.Kind, f.transport)
	setString(&cfg.Transport.Device, f.serial)
	setString(&cfg.Transport.DeviceURL, f.deviceURL)
	setString(&cfg.Transport.MQTT.Broker, f.broker)
	if f.camera >= 0 {
		cfg.Source.CameraDevice = f.camera
	}
	if f.baud > 0 {
		cfg.Transport.BaudRate = f.baud
	}
	if f.port > 0 {
		cfg.HTTP.Port = f.port
	}
}

func run(ctx context.Context, cfg *config.Config, staticDir string) error {
	trackCfg, err := trackingConfig(cfg)
	if err != nil {
		return err
	}

	link, device, err := newTransport(cfg)
	if err != nil {
		return err
	}
	if device != "" {
		if err := link.Connect(device); err != nil {
			log.Warn("actuator not connected, use the API to retry", "device", device, "error", err)
		}
	}
	defer func() {
		if err := link.Disconnect(); err != nil && !errors.Is(err, transport.ErrNotConnected) {
			log.Warn("transport disconnect failed", "error", err)
		}
	}()

	tracker, err := tracking.New(trackCfg, link, nil)
	if err != nil {
		return err
	}
	if t := cfg.Tracking; t != (config.TrackingConfig{}) {
		tracker.SetTuningParams(tracking.TuningParams{
			Deadband:           t.Deadband,
			Alpha:              t.Alpha,
			EmitIntervalMS:     t.EmitIntervalMS,
			ReacquireThreshold: t.ReacquireThreshold,
		})
	}

	mailbox := source.NewMailbox()
	defer mailbox.Close()

	producer, camManager, cleanup, err := newProducer(cfg, mailbox, tracker)
	if err != nil {
		return err
	}
	defer cleanup()

	server := web.NewServer(web.Options{
		Port:      strconv.Itoa(cfg.HTTP.Port),
		Tracker:   tracker,
		Mailbox:   mailbox,
		Transport: link,
		Camera:    camManager,
		StaticDir: staticDir,
	})
	tracker.SetStatusListener(server)

	log.Info("follow starting",
		"mode", trackCfg.Mode,
		"source", cfg.Source.Kind,
		"transport", cfg.Transport.Kind,
		"device", device,
		"port", cfg.HTTP.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error("component failed", "component", name, "error", err)
				errCh <- err
				cancel()
			}
		}()
	}

	start("web", server.Start)
	start("tracker", func(ctx context.Context) error { return tracker.Run(ctx, mailbox) })
	if producer != nil {
		start("source", producer.Run)
	}

	<-ctx.Done()
	log.Info("shutting down")
	mailbox.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("shutdown timed out")
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// trackingConfig picks the mode preset. The camera source only produces
// YuNet face points, so it always tracks the YuNet nose tip.
func trackingConfig(cfg *config.Config) (tracking.Config, error) {
	mode, err := tracking.ParseMode(cfg.Mode)
	if err != nil {
		return tracking.Config{}, err
	}
	if cfg.Source.Kind == "camera" && mode != tracking.ModeFace {
		log.Warn("camera source tracks faces, overriding mode", "mode", mode)
		mode = tracking.ModeFace
	}

	tc, err := tracking.ConfigForMode(mode)
	if err != nil {
		return tracking.Config{}, err
	}
	if cfg.Source.Kind == "camera" {
		tc.AnchorIndices = []int{landmark.YuNetNoseTip}
	}
	return tc, nil
}

// newTransport builds the configured link and returns the device ID to
// connect at startup, empty when none was configured.
func newTransport(cfg *config.Config) (transport.Transport, string, error) {
	tc := cfg.Transport
	switch tc.Kind {
	case "serial":
		return transport.NewSerial(transport.PortOptions{BaudRate: tc.BaudRate}), tc.Device, nil
	case "http":
		return transport.NewHTTP(nil), tc.DeviceURL, nil
	case "mqtt":
		return transport.NewMQTT(transport.MQTTOptions{
			Topic:    tc.MQTT.Topic,
			ClientID: tc.MQTT.ClientID,
			QoS:      tc.MQTT.QoS,
		}), tc.MQTT.Broker, nil
	}
	return nil, "", &config.Error{Field: "transport.kind", Message: "unknown transport " + strconv.Quote(tc.Kind)}
}

// newProducer builds the frame producer for the configured source. The ws
// source has no producer of its own; frames arrive through the web server.
func newProducer(cfg *config.Config, out *source.Mailbox, control source.Control) (source.Producer, *camera.Manager, func(), error) {
	nop := func() {}
	sc := cfg.Source

	switch sc.Kind {
	case "ws":
		return nil, nil, nop, nil

	case "remote":
		r, err := source.NewRemote(source.RemoteConfig{URL: sc.RemoteURL}, out, control)
		if err != nil {
			return nil, nil, nop, err
		}
		return r, nil, nop, nil

	case "sidecar":
		s, err := source.NewSidecar(source.SidecarConfig{Command: sc.SidecarCmd, Args: sc.SidecarArgs}, out)
		if err != nil {
			return nil, nil, nop, err
		}
		return s, nil, nop, nil

	case "camera":
		camCfg := camera.DefaultConfig()
		if p := camera.GetPreset(sc.CameraPreset); p != nil {
			camCfg = *p
		} else if sc.CameraPreset != "" {
			log.Warn("unknown camera preset, using default", "preset", sc.CameraPreset)
		}
		camCfg.Device = sc.CameraDevice
		manager := camera.NewManagerWithConfig(camCfg)

		detCfg := detection.DefaultConfig()
		detCfg.ModelPath = sc.ModelPath
		detector, err := detection.NewYuNet(detCfg)
		if err != nil {
			return nil, nil, nop, err
		}
		cleanup := func() {
			if err := detector.Close(); err != nil {
				log.Warn("detector close failed", "error", err)
			}
		}
		return source.NewCamera(manager, detector, out), manager, cleanup, nil
	}
	return nil, nil, nop, &config.Error{Field: "source.kind", Message: "unknown source " + strconv.Quote(sc.Kind)}
}
