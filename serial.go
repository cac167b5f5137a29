package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/monitoring"
)

// MotorPort reads telemetry lines from the motor controller's serial port
// and writes actuator commands back. Telemetry is one CSV line per control
// tick: timestamp,position,velocity,acceleration,current_iq,temperature.
type MotorPort struct {
	serial.Port
	samples  chan calib.Sample
	commands chan string
}

func NewMotorPort(portName string) (*MotorPort, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	return &MotorPort{
		Port:     port,
		samples:  make(chan calib.Sample),
		commands: make(chan string, 8),
	}, nil
}

// Samples returns the channel of parsed telemetry samples.
func (p *MotorPort) Samples() <-chan calib.Sample {
	return p.samples
}

// SendCommand queues an actuator command for the controller. The wire
// format is "IQ <amps> VEL <rad/s>\n"; the controller applies whichever
// field is non-zero. The queue is drained between telemetry lines, so a
// full queue drops the command rather than stalling the tick loop.
func (p *MotorPort) SendCommand(cmd calib.Command) {
	select {
	case p.commands <- fmt.Sprintf("IQ %.4f VEL %.4f\n", cmd.CurrentIQ, cmd.Velocity):
	default:
		monitoring.Logf("command queue full; dropping IQ=%.4f VEL=%.4f", cmd.CurrentIQ, cmd.Velocity)
	}
}

func (p *MotorPort) writeCommand(command string) error {
	_, err := p.Port.Write([]byte(command))
	return err
}

// Monitor reads telemetry from the serial port and services queued
// commands until the context is cancelled or the port errors out.
func (p *MotorPort) Monitor(ctx context.Context) error {
	defer p.Close()
	scan := bufio.NewScanner(p.Port)

	for {
		select {
		case <-ctx.Done():
			return nil
		case command := <-p.commands:
			if err := p.writeCommand(command); err != nil {
				monitoring.Logf("error writing command to port: %v", err)
			}
		default:
			if !scan.Scan() {
				return scan.Err()
			}
			sample, err := parseSampleLine(scan.Text())
			if err != nil {
				monitoring.Logf("dropping malformed telemetry line: %v", err)
				continue
			}

			select {
			case p.samples <- sample:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// parseSampleLine parses one CSV telemetry line into a sample.
func parseSampleLine(line string) (calib.Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 {
		return calib.Sample{}, fmt.Errorf("expected 6 fields, got %d in %q", len(fields), line)
	}

	vals := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return calib.Sample{}, fmt.Errorf("field %d of %q: %w", i, line, err)
		}
		vals[i] = v
	}

	return calib.Sample{
		Timestamp:    vals[0],
		Position:     vals[1],
		Velocity:     vals[2],
		Acceleration: vals[3],
		CurrentIQ:    vals[4],
		Temperature:  vals[5],
	}, nil
}
