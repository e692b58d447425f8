// Package serial reads buffers from a digitizer attached to a serial line.
//
// The device speaks a line protocol. The host configures it once with
// "CONF <samples> <rate>" and expects "OK". Each "READ" is answered with one
// line of comma separated samples, or "ERR <reason>". "STOP" ends the run.
package serial

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"go.uber.org/zap"

	"pha/log"
)

var (
	ErrorNotOpen  = errors.New("serial port not open")
	ErrorNoPort   = errors.New("no serial port configured")
	ErrorDevice   = errors.New("device reported an error")
	ErrorProtocol = errors.New("unexpected device reply")
)

type Port interface {
	io.ReadWriteCloser
}

type Dialer func(*serial.Config) (Port, error)

func dialTTY(c *serial.Config) (Port, error) {
	return serial.OpenPort(c)
}

type Source struct {
	opts Options

	port Port
	rd   *bufio.Reader
	size int
}

func NewSource(opts ...Option) (*Source, error) {
	s := &Source{
		opts: Options{
			Baud:        DefaultBaud,
			ReadTimeout: DefaultReadTimeout,
			Dial:        dialTTY,
		},
	}

	for _, o := range opts {
		o(&s.opts)
	}

	if s.opts.Port == "" {
		return nil, ErrorNoPort
	}

	return s, nil
}

func (s *Source) Open(bufferSize int, sampleRate float64) error {
	p, err := s.opts.Dial(&serial.Config{
		Name:        s.opts.Port,
		Baud:        s.opts.Baud,
		ReadTimeout: s.opts.ReadTimeout,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", s.opts.Port)
	}

	s.port = p
	s.rd = bufio.NewReader(p)
	s.size = bufferSize

	reply, err := s.call(fmt.Sprintf("CONF %d %s", bufferSize, strconv.FormatFloat(sampleRate, 'g', -1, 64)))
	if err == nil && reply != "OK" {
		err = errors.Wrapf(ErrorProtocol, "configure answered %q", reply)
	}

	if err != nil {
		_ = p.Close()
		s.port = nil

		return err
	}

	log.Info("OpenSerial",
		zap.String("port", s.opts.Port),
		zap.Int("baud", s.opts.Baud),
		zap.Int("bufferSize", bufferSize),
	)

	return nil
}

func (s *Source) Read() ([]float64, error) {
	if s.port == nil {
		return nil, ErrorNotOpen
	}

	line, err := s.call("READ")
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(line, "ERR") {
		return nil, errors.Wrap(ErrorDevice, strings.TrimSpace(strings.TrimPrefix(line, "ERR")))
	}

	return parseSamples(line, s.size)
}

func (s *Source) Close() error {
	if s.port == nil {
		return ErrorNotOpen
	}

	_, werr := io.WriteString(s.port, "STOP\n")
	cerr := s.port.Close()
	s.port = nil

	if cerr != nil {
		return errors.Wrapf(cerr, "failed to close %s", s.opts.Port)
	}

	if werr != nil {
		return errors.Wrap(werr, "failed to stop device")
	}

	return nil
}

func (s *Source) call(cmd string) (string, error) {
	if _, err := io.WriteString(s.port, cmd+"\n"); err != nil {
		return "", errors.Wrapf(err, "failed to send %s", cmd)
	}

	line, err := s.rd.ReadString('\n')
	if err != nil {
		return "", errors.Wrapf(err, "failed to read reply to %s", cmd)
	}

	return strings.TrimSpace(line), nil
}

// parseSamples keeps "nan" and "inf" as the float parser reads them; the
// loop decides what to do with non-finite buffers.
func parseSamples(line string, hint int) ([]float64, error) {
	if line == "" {
		return []float64{}, nil
	}

	out := make([]float64, 0, hint)

	for i, f := range strings.Split(line, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrorProtocol, "sample %d: %v", i, err)
		}

		out = append(out, v)
	}

	return out, nil
}
