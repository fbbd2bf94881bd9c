package motor

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// servo IDs on the wire protocol (pan=1, tilt=2).
const (
	panServoID  = 1
	tiltServoID = 2

	serialReadTimeout = 1 * time.Second
)

// SerialBackend drives two hobby servos over a USB/serial connection
// using a simple ASCII line protocol: "{servo_id},{angle}\n" at 115200
// baud, with "POS:{pos1},{pos2}\n" readback and an "ERROR" token. Any
// Backend implementation is a valid substitute for this one.
type SerialBackend struct {
	portName string
	baudRate int
	port     *serial.Port
	reader   *bufio.Reader
}

// NewSerialBackend creates a backend bound to the given device path (e.g.
// "/dev/ttyUSB0" or "COM3"). Connect must be called before MoveBoth.
func NewSerialBackend(portName string, baudRate int) *SerialBackend {
	if baudRate <= 0 {
		baudRate = 115200
	}
	return &SerialBackend{portName: portName, baudRate: baudRate}
}

func (b *SerialBackend) Connect(ctx context.Context) error {
	cfg := &serial.Config{
		Name:        b.portName,
		Baud:        b.baudRate,
		ReadTimeout: serialReadTimeout,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", b.portName, err)
	}
	b.port = port
	b.reader = bufio.NewReader(port)
	log.Info("serial motor backend connected", "port", b.portName, "baud", b.baudRate)
	return nil
}

func (b *SerialBackend) Disconnect() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.reader = nil
	return err
}

// MoveBoth drives both servos, sending one line per servo and reading back
// a "POS:" acknowledgement or "ERROR" token, mirroring
// ServoController._send_command in the reference implementation.
func (b *SerialBackend) MoveBoth(panAngle, tiltAngle int) error {
	if b.port == nil {
		return fmt.Errorf("serial motor backend not connected")
	}
	if err := b.sendCommand(panServoID, Clamp(panAngle)); err != nil {
		return fmt.Errorf("move pan servo: %w", err)
	}
	if err := b.sendCommand(tiltServoID, Clamp(tiltAngle)); err != nil {
		return fmt.Errorf("move tilt servo: %w", err)
	}
	return nil
}

func (b *SerialBackend) sendCommand(servoID, angle int) error {
	line := fmt.Sprintf("%d,%d\n", servoID, angle)
	if _, err := b.port.Write([]byte(line)); err != nil {
		return fmt.Errorf("write serial command: %w", err)
	}

	resp, err := b.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read serial response: %w", err)
	}
	resp = strings.TrimSpace(resp)
	if strings.HasPrefix(resp, "ERROR") {
		return fmt.Errorf("servo controller reported error: %s", resp)
	}
	if !strings.HasPrefix(resp, "POS:") {
		log.Warn("unexpected serial response, proceeding anyway", "response", resp)
	}
	return nil
}
