package debounce

import (
	"flag"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// Config defines debounce parameters shared by all inputs.
type Config struct {
	// Ticks is the number of ticks a press must persist.
	Ticks int
	// ActiveLevel is the raw level meaning pressed.
	ActiveLevel gpio.Level
}

// DefaultTicks is 10ms at the default UART tick frequency.
const DefaultTicks = 3072

var (
	defaultConfig = Config{
		Ticks:       DefaultTicks,
		ActiveLevel: gpio.Low,
	}
	activeHigh bool
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.Ticks, "debounce-ticks", defaultConfig.Ticks, "Ticks a button press must persist.")
	flag.BoolVar(&activeHigh, "active-high", activeHigh, "Buttons are pressed when the raw level is high.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	if activeHigh {
		conf.ActiveLevel = gpio.High
	}
	return &conf
}

// Validate checks the parameters.
func (c *Config) Validate() error {
	if c.Ticks < 0 {
		return errors.Errorf("debounce ticks must not be negative: %d", c.Ticks)
	}
	return nil
}
