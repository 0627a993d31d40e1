package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/protocol"
	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/orient"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
)

func startServer(t *testing.T) (url string, ship *grid.Grid) {
	t.Helper()
	w := grid.NewWorld()
	ship = w.NewGrid("ship")
	for x := 0; x < 3; x++ {
		_, err := ship.PlaceAt(grid.KindArmor, host.Vec3i{X: x})
		require.NoError(t, err)
	}

	tune := tuning.Defaults()
	tune.TickRateHz = 200
	rt := sections.NewRuntime("w1", sections.NewSession(w, tune, sections.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rt.Run(ctx)
	}()

	srv := httptest.NewServer(NewServer(rt, tune, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), ship
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestServer_HandshakeAndInputs(t *testing.T) {
	url, ship := startServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: "alice"}))
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, protocol.TypeWelcome, welcome.Type)
	assert.Equal(t, "w1", welcome.WorldID)
	assert.True(t, strings.HasPrefix(welcome.PlayerID, "alice#"))
	assert.Equal(t, 200, welcome.TickRateHz)
	assert.True(t, welcome.Options.DeleteConfirmation)
	assert.Len(t, welcome.TuningDigest, 64)

	send := func(m protocol.InputMsg) map[string]any {
		t.Helper()
		m.Type = protocol.TypeInput
		require.NoError(t, conn.WriteJSON(m))
		var out map[string]any
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	out := send(protocol.InputMsg{Seq: 1, Action: "ACTIVATE"})
	assert.Equal(t, protocol.TypeState, out["type"])
	assert.Equal(t, "SELECTING_FIRST", out["state"])
	assert.Equal(t, 1.0, out["seq"])

	aim := &protocol.AimRef{GridID: int64(ship.ID())}
	out = send(protocol.InputMsg{Seq: 2, Action: "primary", Aim: aim})
	assert.Equal(t, "SELECTING_SECOND", out["state"])

	aim2 := &protocol.AimRef{GridID: int64(ship.ID()), Cell: protocol.Vec3i{X: 2}}
	out = send(protocol.InputMsg{Seq: 3, Action: "PRIMARY", Aim: aim2})
	assert.Equal(t, "RESIZING", out["state"])
	assert.Equal(t, "3 x 1 x 1", out["size"])

	out = send(protocol.InputMsg{Seq: 4, Action: "RESIZE"})
	assert.Equal(t, protocol.TypeError, out["type"])
	assert.Equal(t, protocol.ErrBadInput, out["code"])
	assert.Equal(t, 4.0, out["seq"])

	out = send(protocol.InputMsg{Seq: 5, Action: "PRIMARY"})
	assert.Equal(t, "INACTIVE", out["state"])
	op := out["op"].(map[string]any)
	assert.Equal(t, "COPY", op["kind"])
	assert.Equal(t, 3.0, op["blocks"])

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello}))
	var errMsg protocol.ErrorMsg
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, protocol.ErrProtoBadRequest, errMsg.Code)
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	url, _ := startServer(t)

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", PlayerName: "old"}))
	var errMsg protocol.ErrorMsg
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, protocol.ErrProtoUnsupported, errMsg.Code)
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	conn = dial(t, url)
	require.NoError(t, conn.WriteJSON(protocol.InputMsg{Type: protocol.TypeInput, Action: "ACTIVATE"}))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)

	conn = dial(t, url)
	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "2.0", SupportedVersions: []string{protocol.Version}}))
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, protocol.Version, welcome.SelectedVersion)
	assert.True(t, strings.HasPrefix(welcome.PlayerID, "player#"))
}

func TestToInput(t *testing.T) {
	in, err := ToInput(protocol.InputMsg{
		Action: " resize ", Direction: "Left", Shrink: true,
		View:   &protocol.ViewRef{Forward: [3]float64{1, 0, 0}, Up: [3]float64{0, 1, 0}},
		Offset: &protocol.Vec3i{Y: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, sections.ActionResize, in.Action)
	assert.Equal(t, orient.Left, in.Direction)
	assert.True(t, in.Shrink)
	assert.True(t, in.View.Valid())
	assert.Equal(t, host.Vec3i{Y: 1}, in.Offset)
	assert.Nil(t, in.Aim)

	bad := []protocol.InputMsg{
		{Action: "JUMP"},
		{Action: "RESIZE"},
		{Action: "RESIZE", Direction: "north"},
		{Action: "AIM", Aim: &protocol.AimRef{}},
		{Action: "AIM", View: &protocol.ViewRef{Forward: [3]float64{0, 1, 0}, Up: [3]float64{0, 2, 0}}},
	}
	for _, m := range bad {
		_, err := ToInput(m)
		assert.Error(t, err, "%+v", m)
	}
}

func TestFromResult(t *testing.T) {
	box := host.Box{Min: host.Vec3i{X: 1}, Max: host.Vec3i{X: 2, Y: 1}}
	msg := FromResult(9, sections.Result{
		State: sections.StateResizing, Handled: true, Box: &box, Size: "2 x 2 x 1",
		Op: &sections.Op{Kind: sections.OpCut, GridID: 4, Blocks: 3, Grids: 2},
	})
	assert.Equal(t, uint64(9), msg.Seq)
	assert.Equal(t, "RESIZING", msg.State)
	assert.Equal(t, protocol.Vec3i{X: 2, Y: 1}, msg.Box.Max)
	assert.Equal(t, "CUT", msg.Op.Kind)
	assert.Equal(t, int64(4), msg.Op.GridID)
}
