// Package env provides the options locating the board in its environment.
package env

import (
	"flag"
	"os"
	"strconv"

	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
)

// Config defines how the board is exposed.
type Config struct {
	// ID identifies the board in telemetry topics.
	ID string
	// MQTTURL is the telemetry broker, e.g. mqtt://host:port/topic-prefix.
	// Telemetry is disabled if empty.
	MQTTURL string
	// SerialPort is a host tty bridged to the board.
	SerialPort string
	// SerialBaud is the baud rate of SerialPort.
	SerialBaud int
	// Listen is the address serving the websocket bridge.
	Listen string
}

var defaultConfig = Config{
	SerialBaud: 9600,
}

func init() {
	if val := os.Getenv("SOFTUART_ID"); val != "" {
		defaultConfig.ID = val
	}
	if val := os.Getenv("SOFTUART_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("SOFTUART_SERIAL"); val != "" {
		defaultConfig.SerialPort = val
	}
	if val := os.Getenv("SOFTUART_SERIAL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.SerialBaud = baud
		}
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Board ID, default is the machine ID.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "Telemetry broker URL.")
	flag.StringVar(&defaultConfig.SerialPort, "serial", defaultConfig.SerialPort, "Host serial port bridged to the board.")
	flag.IntVar(&defaultConfig.SerialBaud, "serial-baud", defaultConfig.SerialBaud, "Baud rate of the host serial port.")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Websocket bridge listen address.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// BoardID returns ID or the machine ID if ID is not set.
func (c *Config) BoardID() (string, error) {
	if c.ID != "" {
		return c.ID, nil
	}
	id, err := machineid.ID()
	if err != nil {
		return "", errors.Wrap(err, "machine id")
	}
	return id, nil
}
