package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sections.ai/internal/protocol"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
)

// Runtime is the part of the session loop the transport drives.
type Runtime interface {
	ID() string
	Submit(ctx context.Context, player string, in sections.Input) (sections.Result, error)
	Leave(player string)
}

type Server struct {
	rt   Runtime
	tune tuning.Tuning
	log  *log.Logger

	upgrader      websocket.Upgrader
	nextID        atomic.Uint64
	submitTimeout time.Duration
}

func NewServer(rt Runtime, tune tuning.Tuning, logger *log.Logger) *Server {
	return &Server{
		rt:   rt,
		tune: tune,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		submitTimeout: 5 * time.Second,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID := s.handshake(conn)
		if playerID == "" {
			return
		}
		defer s.rt.Leave(playerID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The reader loop is the only writer; replies go out in input order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := s.handleMessage(ctx, playerID, msg)
			if reply == nil {
				continue
			}
			if err := writeJSON(conn, reply); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, playerID string, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return errorMsg(0, protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.Type != protocol.TypeInput {
		return errorMsg(0, protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}
	var m protocol.InputMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return errorMsg(0, protocol.ErrProtoBadRequest, "malformed INPUT")
	}
	in, err := ToInput(m)
	if err != nil {
		return errorMsg(m.Seq, protocol.ErrBadInput, err.Error())
	}

	subCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	res, err := s.rt.Submit(subCtx, playerID, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errorMsg(m.Seq, protocol.ErrBusy, "session loop did not answer in time")
		}
		return nil
	}
	if res.Notice == sections.ErrNotLoaded.Error() {
		return errorMsg(m.Seq, protocol.ErrNotLoaded, res.Notice)
	}
	return FromResult(m.Seq, res)
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	selected, ok := negotiateVersion(hello)
	if !ok {
		_ = writeJSON(conn, errorMsg(0, protocol.ErrProtoUnsupported, "supported protocol_version: "+protocol.Version))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "player"
	}

	n := s.nextID.Add(1)
	playerID := fmt.Sprintf("%s#%d", name, n)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SelectedVersion: selected,
		SessionID:       fmt.Sprintf("S%d", n),
		PlayerID:        playerID,
		WorldID:         s.rt.ID(),
		TickRateHz:      s.tune.TickRateHz,
		TuningDigest:    s.tune.Digest(),
		Options:         playerOptions(s.tune.Sections),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	if s.log != nil {
		s.log.Printf("player joined id=%s", playerID)
	}
	return playerID
}

func negotiateVersion(h protocol.HelloMsg) (string, bool) {
	if h.ProtocolVersion == protocol.Version {
		return protocol.Version, true
	}
	if slices.Contains(h.SupportedVersions, protocol.Version) {
		return protocol.Version, true
	}
	return "", false
}

func playerOptions(o tuning.Sections) protocol.PlayerOptions {
	return protocol.PlayerOptions{
		DeleteConfirmation:   o.DeleteConfirmation,
		CutConfirmation:      o.CutConfirmation,
		RenameBlueprint:      o.RenameBlueprint,
		HandleSubgrids:       o.HandleSubgrids,
		DisablePlacementTest: o.DisablePlacementTest,
		ShowHints:            o.ShowHints,
		ShowSize:             o.ShowSize,
	}
}

func errorMsg(seq uint64, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, Seq: seq, Code: code, Message: message}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
