package board

import (
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/debounce"
	"github.com/robotalks/softuart/pkg/uart"
)

// Config defines the board.
type Config struct {
	UART     uart.Config
	Debounce debounce.Config
	// Loopback re-transmits every received frame. It has no effect when
	// the receive line reads back the transmit line.
	Loopback bool
	// Buttons maps a button to the byte transmitted when it is pressed.
	Buttons ButtonMap
}

// ButtonMap maps button IDs to bytes. It implements flag.Value in the
// form ID=BYTE and can be repeated.
type ButtonMap map[int]byte

// String implements flag.Value.
func (m ButtonMap) String() string {
	ids := m.IDs()
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, fmt.Sprintf("%d=0x%02x", id, m[id]))
	}
	return strings.Join(strs, ",")
}

// Set implements flag.Value.
func (m ButtonMap) Set(val string) error {
	for _, item := range strings.Split(val, ",") {
		pos := strings.Index(item, "=")
		if pos <= 0 {
			return errors.Errorf("invalid button mapping %q, expect ID=BYTE", item)
		}
		id, err := strconv.Atoi(strings.TrimSpace(item[:pos]))
		if err != nil {
			return errors.Wrapf(err, "invalid button ID in %q", item)
		}
		b, err := strconv.ParseUint(strings.TrimSpace(item[pos+1:]), 0, 8)
		if err != nil {
			return errors.Wrapf(err, "invalid byte in %q", item)
		}
		m[id] = byte(b)
	}
	return nil
}

// IDs returns the button IDs in ascending order.
func (m ButtonMap) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

var defaultConfig = Config{
	UART:     *uart.Default(),
	Debounce: *debounce.Default(),
	Buttons:  ButtonMap{},
}

// SetupFlags sets command line flags including the ones of uart and debounce.
func SetupFlags() {
	uart.SetupFlags()
	debounce.SetupFlags()
	flag.BoolVar(&defaultConfig.Loopback, "loopback", defaultConfig.Loopback, "Re-transmit every received frame (ignored when rx is wired to tx).")
	flag.Var(defaultConfig.Buttons, "button", "Byte sent on button press as ID=BYTE, repeatable.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.UART = *uart.NewConfig()
	conf.Debounce = *debounce.NewConfig()
	conf.Buttons = make(ButtonMap)
	for id, b := range defaultConfig.Buttons {
		conf.Buttons[id] = b
	}
	return &conf
}

// Validate checks the config.
func (c *Config) Validate() error {
	if err := c.UART.Validate(); err != nil {
		return errors.Wrap(err, "uart")
	}
	if err := c.Debounce.Validate(); err != nil {
		return errors.Wrap(err, "debounce")
	}
	return nil
}
