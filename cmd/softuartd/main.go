package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/bridge"
	"github.com/robotalks/softuart/pkg/env"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/line"
	"github.com/robotalks/softuart/pkg/telemetry/mqtt"
)

func init() {
	env.SetupFlags()
	board.SetupFlags()
}

func main() {
	flag.Parse()

	envConf, conf := env.NewConfig(), board.NewConfig()
	wire := line.NewWire(gpio.High)
	switches, buttons := make(map[int]*line.Switch), make(map[int]line.Reader)
	for _, id := range conf.Buttons.IDs() {
		sw := line.NewSwitch(conf.Debounce.ActiveLevel)
		switches[id], buttons[id] = sw, sw
	}
	b, err := board.New(*conf, wire, wire, buttons)
	if err != nil {
		log.Fatalln(err)
	}

	loop := fx.NewLoop().Add(b)
	loop.Interval = 10 * time.Millisecond
	loop.TicksPerInterval = uint64(conf.UART.TickFrequency / 100)

	if envConf.SerialPort != "" {
		port, err := bridge.OpenSerial(envConf.SerialPort, envConf.SerialBaud)
		if err != nil {
			log.Fatalln(err)
		}
		loop.AddRunnable(fx.NamedRun("serial", bridge.New(port, b)))
	}
	if envConf.Listen != "" {
		loop.AddRunnable(&bridge.Server{Addr: envConf.Listen, Board: b})
	}
	if envConf.MQTTURL != "" {
		id, err := envConf.BoardID()
		if err != nil {
			log.Fatalln(err)
		}
		q, err := mqtt.NewQueueFromURL(envConf.MQTTURL)
		if err != nil {
			log.Fatalln(err)
		}
		reporter := mqtt.NewReporter(q, b, mqtt.MetaFromConfig(id, b.Config()))
		reporter.Switches = switches
		loop.AddRunnable(reporter)
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
