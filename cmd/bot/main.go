package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"sections.ai/internal/protocol"
)

// script is a scripted selector session.
//
//	player: builder
//	steps:
//	  - action: ACTIVATE
//	    expect: SELECTING_FIRST
//	  - action: PRIMARY
//	    aim: {grid: 1, cell: [0, 0, 0]}
type script struct {
	Player string `yaml:"player"`
	Steps  []step `yaml:"steps"`
}

type step struct {
	Action    string  `yaml:"action"`
	Aim       *aim    `yaml:"aim"`
	View      *view   `yaml:"view"`
	Direction string  `yaml:"direction"`
	Shrink    bool    `yaml:"shrink"`
	Intersect bool    `yaml:"intersect"`
	Force     bool    `yaml:"force"`
	Name      string  `yaml:"name"`
	Onto      bool    `yaml:"onto"`
	Offset    *[3]int `yaml:"offset"`
	Expect    string  `yaml:"expect"`
	Pause     string  `yaml:"pause"`
	pause     time.Duration
}

type aim struct {
	Grid int64  `yaml:"grid"`
	Cell [3]int `yaml:"cell"`
}

type view struct {
	Forward [3]float64 `yaml:"forward"`
	Up      [3]float64 `yaml:"up"`
}

func loadScript(r io.Reader) (script, error) {
	var s script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("script: %w", err)
	}
	if len(s.Steps) == 0 {
		return s, fmt.Errorf("script: no steps")
	}
	for i := range s.Steps {
		st := &s.Steps[i]
		if strings.TrimSpace(st.Action) == "" {
			return s, fmt.Errorf("script: step %d: missing action", i+1)
		}
		if st.Pause != "" {
			d, err := time.ParseDuration(st.Pause)
			if err != nil {
				return s, fmt.Errorf("script: step %d: pause: %w", i+1, err)
			}
			st.pause = d
		}
	}
	return s, nil
}

func (st step) input(seq uint64) protocol.InputMsg {
	m := protocol.InputMsg{
		Type:      protocol.TypeInput,
		Seq:       seq,
		Action:    st.Action,
		Direction: st.Direction,
		Shrink:    st.Shrink,
		Intersect: st.Intersect,
		Force:     st.Force,
		Name:      st.Name,
		Onto:      st.Onto,
	}
	if st.Aim != nil {
		m.Aim = &protocol.AimRef{GridID: st.Aim.Grid, Cell: vec(st.Aim.Cell)}
	}
	if st.View != nil {
		m.View = &protocol.ViewRef{Forward: st.View.Forward, Up: st.View.Up}
	}
	if st.Offset != nil {
		v := vec(*st.Offset)
		m.Offset = &v
	}
	return m
}

func vec(a [3]int) protocol.Vec3i { return protocol.Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// play runs s over one connection. Every reply is written to out as a JSON
// line. A reply whose state differs from the step's expectation, or an
// ERROR reply to a step that expects a state, fails the run.
func play(ctx context.Context, url string, s script, out io.Writer, logger *log.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	name := s.Player
	if name == "" {
		name = "bot"
	}
	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      name,
	}); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}

	msg, base, err := readMsg(conn)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return fmt.Errorf("decode WELCOME: %w", err)
		}
		logger.Printf("WELCOME player_id=%s world=%s tick_rate=%d", w.PlayerID, w.WorldID, w.TickRateHz)
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("handshake rejected: %s: %s", e.Code, e.Message)
	default:
		return fmt.Errorf("handshake: unexpected %s", base.Type)
	}

	for i, st := range s.Steps {
		if st.pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(st.pause):
			}
		}
		seq := uint64(i + 1)
		if err := conn.WriteJSON(st.input(seq)); err != nil {
			return fmt.Errorf("step %d: send: %w", seq, err)
		}
		msg, base, err := readMsg(conn)
		if err != nil {
			return fmt.Errorf("step %d: %w", seq, err)
		}
		fmt.Fprintln(out, string(msg))

		switch base.Type {
		case protocol.TypeState:
			var sm protocol.StateMsg
			if err := json.Unmarshal(msg, &sm); err != nil {
				return fmt.Errorf("step %d: decode STATE: %w", seq, err)
			}
			if st.Expect != "" && !strings.EqualFold(st.Expect, sm.State) {
				return fmt.Errorf("step %d %s: state %s, want %s", seq, st.Action, sm.State, strings.ToUpper(st.Expect))
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			if st.Expect != "" && !strings.EqualFold(st.Expect, e.Code) {
				return fmt.Errorf("step %d %s: %s: %s", seq, st.Action, e.Code, e.Message)
			}
		default:
			return fmt.Errorf("step %d: unexpected %s", seq, base.Type)
		}
	}
	return nil
}

func readMsg(conn *websocket.Conn) ([]byte, protocol.BaseMessage, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, protocol.BaseMessage{}, err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil, base, fmt.Errorf("decode: %w", err)
	}
	return msg, base, nil
}

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		scriptPath = flag.String("script", "", "path to a YAML selector script (required)")
		name       = flag.String("name", "", "player name (overrides the script)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *scriptPath == "" {
		logger.Fatalf("missing -script")
	}
	f, err := os.Open(*scriptPath)
	if err != nil {
		logger.Fatalf("open script: %v", err)
	}
	s, err := loadScript(f)
	f.Close()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if *name != "" {
		s.Player = *name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := play(ctx, *url, s, os.Stdout, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}
