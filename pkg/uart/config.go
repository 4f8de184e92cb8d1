package uart

import (
	"flag"

	"github.com/pkg/errors"
)

// Config defines the timing of the serial line.
type Config struct {
	// TickFrequency is the driving tick rate in Hz.
	TickFrequency int
	// BitRate is the line rate in bits per second.
	BitRate int
	// OversampleFactor is the number of receiver samples per bit.
	OversampleFactor int
}

// Defaults
const (
	DefaultBitRate          = 9600
	DefaultOversampleFactor = 8
	DefaultTickFrequency    = DefaultBitRate * DefaultOversampleFactor * 4
)

var defaultConfig = Config{
	TickFrequency:    DefaultTickFrequency,
	BitRate:          DefaultBitRate,
	OversampleFactor: DefaultOversampleFactor,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.TickFrequency, "tick-freq", defaultConfig.TickFrequency, "Driving tick frequency (Hz).")
	flag.IntVar(&defaultConfig.BitRate, "bit-rate", defaultConfig.BitRate, "Serial line bit rate (bits/s).")
	flag.IntVar(&defaultConfig.OversampleFactor, "oversample", defaultConfig.OversampleFactor, "Receiver samples per bit, must be even.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// WithBaudCode sets BitRate from a baud selector code.
func (c *Config) WithBaudCode(code uint8) (*Config, error) {
	rate, err := BaudRate(code)
	if err != nil {
		return c, err
	}
	c.BitRate = rate
	return c, nil
}

// Validate checks the timing parameters are consistent.
func (c *Config) Validate() error {
	if c.TickFrequency <= 0 {
		return errors.Errorf("tick frequency must be positive: %d", c.TickFrequency)
	}
	if c.BitRate <= 0 {
		return errors.Errorf("bit rate must be positive: %d", c.BitRate)
	}
	if c.OversampleFactor < 2 || c.OversampleFactor%2 != 0 {
		return errors.Errorf("oversample factor must be even and at least 2: %d", c.OversampleFactor)
	}
	if c.TickFrequency%c.BitRate != 0 {
		return errors.Errorf("tick frequency %d is not a multiple of bit rate %d", c.TickFrequency, c.BitRate)
	}
	if perBit := c.TickFrequency / c.BitRate; perBit%c.OversampleFactor != 0 {
		return errors.Errorf("ticks per bit %d is not a multiple of oversample factor %d", perBit, c.OversampleFactor)
	}
	return nil
}

// TicksPerBit is the number of driving ticks in one bit period.
func (c *Config) TicksPerBit() int {
	return c.TickFrequency / c.BitRate
}

// SampleDivider is the number of driving ticks per receiver sample.
func (c *Config) SampleDivider() int {
	return c.TicksPerBit() / c.OversampleFactor
}

// NewReceiver creates a Receiver using the config.
func (c *Config) NewReceiver() (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewReceiver(c.OversampleFactor), nil
}
