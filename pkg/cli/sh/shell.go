// Package sh provides an interactive shell over a simulated board.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/display"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Sim   *Sim
}

const (
	shellKey = "$shell"
	prompt   = "uart > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&SendCmd,
		&PressCmd,
		&BounceCmd,
		&RunCmd,
		&StatusCmd,
		&DisplayCmd,
		&ResetCmd,
		&LoopbackCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(sim *Sim) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Sim:   sim,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// FormatEvents prints events one per line.
func FormatEvents(events []board.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := e.String()
		if e.Kind != board.ButtonPressed && e.Data >= 0x20 && e.Data < 0x7f {
			line += fmt.Sprintf(" %q", rune(e.Data))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ParseBytes parses arguments as bytes. An argument is either a number
// (decimal, 0x hex, 0b binary) or a quoted string like 'abc' or "abc".
func ParseBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		if len(arg) >= 2 && (arg[0] == '\'' || arg[0] == '"') && arg[len(arg)-1] == arg[0] {
			data = append(data, arg[1:len(arg)-1]...)
			continue
		}
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, errors.Errorf("invalid byte %q", arg)
		}
		data = append(data, byte(v))
	}
	return data, nil
}

func (s *Shell) printEvents(c *ishell.Context, events []board.Event) {
	if s.OutputJSON {
		s.printJSON(c, events)
		return
	}
	if len(events) > 0 {
		c.Println(FormatEvents(events))
	}
}

func (s *Shell) printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

func parseTicks(args []string, index int, def uint64) (uint64, error) {
	if len(args) <= index {
		return def, nil
	}
	n, err := strconv.ParseUint(args[index], 0, 64)
	if err != nil {
		return 0, errors.Errorf("invalid ticks %q", args[index])
	}
	return n, nil
}

func parseButton(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("button ID expected")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.Errorf("invalid button ID %q", args[0])
	}
	return id, nil
}

var (
	// SendCmd transmits bytes.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "BYTE|'TEXT'...",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			data, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			events, err := s.Sim.Send(data)
			s.printEvents(c, events)
			if err != nil {
				c.Err(err)
			}
		},
	}

	// PressCmd presses a button.
	PressCmd = ishell.Cmd{
		Name:    "press",
		Aliases: []string{"p"},
		Help:    "ID [TICKS]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			id, err := parseButton(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			hold, err := parseTicks(c.Args, 1, uint64(s.Sim.Board.Config().Debounce.Ticks)+1)
			if err != nil {
				c.Err(err)
				return
			}
			events, err := s.Sim.Press(id, hold)
			if err != nil {
				c.Err(err)
				return
			}
			s.printEvents(c, events)
		},
	}

	// BounceCmd replays a contact pattern on a button.
	BounceCmd = ishell.Cmd{
		Name:    "bounce",
		Aliases: []string{"b"},
		Help:    "ID PATTERN",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			id, err := parseButton(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 2 {
				c.Err(errors.New("pattern expected, e.g. 1101"))
				return
			}
			closed, err := ParseBounce(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			events, err := s.Sim.Bounce(id, closed)
			if err != nil {
				c.Err(err)
				return
			}
			s.printEvents(c, events)
		},
	}

	// RunCmd advances the board.
	RunCmd = ishell.Cmd{
		Name:    "run",
		Aliases: []string{"r"},
		Help:    "[TICKS]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			n, err := parseTicks(c.Args, 0, s.Sim.FrameTicks())
			if err != nil {
				c.Err(err)
				return
			}
			s.printEvents(c, s.Sim.Run(n))
		},
	}

	// StatusCmd prints the board status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			st := s.Sim.Board.Status()
			if s.OutputJSON {
				s.printJSON(c, st)
				return
			}
			c.Printf("tick %d\n", st.Tick)
			c.Printf("rx %s busy=%v received=%d\n", st.RxState, st.RxBusy, st.Received)
			c.Printf("tx %s busy=%v sent=%d dropped=%d\n", st.TxState, st.TxBusy, st.Sent, st.Dropped)
			c.Printf("buttons held=%v pressed=%d\n", st.Held, st.Pressed)
			c.Printf("display %s\n", st.Display)
		},
	}

	// DisplayCmd draws the seven-segment display.
	DisplayCmd = ishell.Cmd{
		Name:    "display",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			st := ShellFrom(c).Sim.Board.Status()
			c.Println(display.Render(st.Glyphs[:]...))
		},
	}

	// ResetCmd resets the board.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Sim.Reset()
			c.Println("OK")
		},
	}

	// LoopbackCmd shows or switches loopback.
	LoopbackCmd = ishell.Cmd{
		Name: "loopback",
		Help: "[on|off]",
		Func: func(c *ishell.Context) {
			b := ShellFrom(c).Sim.Board
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on", "1", "true":
					b.SetLoopback(true)
				case "off", "0", "false":
					b.SetLoopback(false)
				default:
					c.Err(errors.Errorf("invalid loopback %q, expect on or off", c.Args[0]))
					return
				}
			}
			if b.Config().Loopback {
				c.Println("loopback on")
			} else {
				c.Println("loopback off")
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := board.NewConfig()
	if len(conf.Buttons) == 0 {
		conf.Buttons[0] = 'U'
	}
	sim, err := NewSim(*conf)
	if err != nil {
		log.Fatalln(err)
	}
	New(sim).Run(flag.Args()...)
}
