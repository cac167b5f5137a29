package main

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// MockSerialPort implements serial.Port over an in-memory buffer so the
// telemetry path can be tested without hardware. Reads return io.EOF once
// the buffer is drained.
type MockSerialPort struct {
	errorMessage string
	buf          []byte
	written      []byte
	closed       bool
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	if m.errorMessage != "" {
		return 0, fmt.Errorf("error %q", m.errorMessage)
	}
	if len(m.buf) == 0 {
		return 0, io.EOF
	}
	byteCount := copy(p, m.buf)
	m.buf = m.buf[byteCount:] // remove read bytes
	return byteCount, nil
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) Break(time.Duration) error                            { return nil }
