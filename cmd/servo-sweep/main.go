// servo-sweep - exercise a follow actuator without a camera
//
// Sweeps every axis from 0 to the output maximum and back, then sends the
// no-target sentinel. Useful for checking wiring and servo range.
//
// Usage:
//
//	servo-sweep -serial /dev/ttyUSB0
//	servo-sweep -serial /dev/ttyACM0 -dims 3 -step 50
//	servo-sweep -mqtt tcp://broker:1883 -cycles 3
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-follow/internal/config"
	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/protocol"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/transport"
)

func main() {
	serialPort := flag.String("serial", config.SerialPort(""), "Serial device path")
	baud := flag.Int("baud", config.BaudRate(config.DefaultBaudRate), "Serial baud rate")
	deviceURL := flag.String("http", "", "Actuator HTTP endpoint (instead of serial)")
	broker := flag.String("mqtt", "", "MQTT broker URL (instead of serial)")
	dims := flag.Int("dims", 2, "Axes per line: 2 (x,y) or 3 (x,y,z)")
	step := flag.Int("step", 0, "Step per line in output units (default: 5% of range)")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between lines")
	cycles := flag.Int("cycles", 1, "Number of sweeps")
	list := flag.Bool("list", false, "List serial devices and exit")
	flag.Parse()

	log.Init("info")

	if *list {
		listDevices()
		return
	}

	if *dims != 2 && *dims != 3 {
		log.Error("dims must be 2 or 3", "dims", *dims)
		os.Exit(1)
	}

	link, device := pickTransport(*serialPort, *baud, *deviceURL, *broker)
	if device == "" {
		log.Error("no device given, use -serial, -http or -mqtt")
		os.Exit(1)
	}
	if err := link.Connect(device); err != nil {
		log.Error("connect failed", "device", device, "error", err)
		os.Exit(1)
	}
	defer link.Disconnect()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	limit := tracking.PercentMax
	if *dims == 3 {
		limit = tracking.FineMax
	}
	s := *step
	if s <= 0 {
		s = int(limit / 20)
	}

	log.Info("sweeping", "device", device, "dims", *dims, "max", limit, "step", s, "interval", *interval)
	sent := sweep(ctx, link, *dims, int(limit), s, *cycles, *interval)

	// The writer goroutine needs a moment to flush the final sentinel.
	link.Send(protocol.Sentinel(*dims).Line())
	time.Sleep(*interval)
	log.Info("sweep done", "lines", sent+1)
}

func pickTransport(serialPort string, baud int, deviceURL, broker string) (transport.Transport, string) {
	switch {
	case deviceURL != "":
		return transport.NewHTTP(nil), deviceURL
	case broker != "":
		return transport.NewMQTT(transport.MQTTOptions{}), broker
	default:
		return transport.NewSerial(transport.PortOptions{BaudRate: baud}), serialPort
	}
}

// sweep moves all axes together up and down, returning the number of lines
// sent. It stops early when ctx ends.
func sweep(ctx context.Context, link transport.Transport, dims, limit, step, cycles int, interval time.Duration) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for c := 0; c < cycles; c++ {
		for _, v := range sweepValues(limit, step) {
			cmd := protocol.Command{X: v, Y: v, Dims: dims}
			if dims == 3 {
				cmd.Z = v
			}
			link.Send(cmd.Line())
			sent++

			select {
			case <-ctx.Done():
				return sent
			case <-ticker.C:
			}
		}
	}
	return sent
}

// sweepValues returns 0..limit..0 in step increments, always including limit.
func sweepValues(limit, step int) []int {
	var up []int
	for v := 0; v < limit; v += step {
		up = append(up, v)
	}
	up = append(up, limit)

	out := append([]int(nil), up...)
	for i := len(up) - 2; i >= 0; i-- {
		out = append(out, up[i])
	}
	return out
}

func listDevices() {
	devices, err := transport.NewSerial(transport.PortOptions{}).ListDevices()
	if err != nil {
		log.Error("failed to list serial devices", "error", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("no serial devices found")
		return
	}
	for _, d := range devices {
		if d.USB {
			fmt.Printf("%s\t%s\t%s:%s\n", d.ID, d.Name, d.VID, d.PID)
		} else {
			fmt.Println(d.ID)
		}
	}
}
