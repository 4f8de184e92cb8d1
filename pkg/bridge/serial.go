package bridge

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// OpenSerial opens a host serial port in 8N1.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", name)
	}
	return port, nil
}
