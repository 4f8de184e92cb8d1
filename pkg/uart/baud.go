package uart

import (
	"github.com/pkg/errors"
)

var baudRates = [...]int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// BaudRate maps a 3-bit baud selector code to bits per second.
func BaudRate(code uint8) (int, error) {
	if int(code) >= len(baudRates) {
		return 0, errors.Errorf("unknown baud code %d", code)
	}
	return baudRates[code], nil
}

// BaudCode is the reverse of BaudRate.
func BaudCode(rate int) (uint8, error) {
	for code, r := range baudRates {
		if r == rate {
			return uint8(code), nil
		}
	}
	return 0, errors.Errorf("no baud code for %d bits/s", rate)
}
