package hub

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/javajack/gridsync"
	"github.com/javajack/gridsync/collab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(opts ...Option) (*Hub, *gridsync.SheetRegistry) {
	reg := gridsync.NewSheetRegistry(gridsync.WithRecalculation(true))
	opts = append([]Option{
		WithComments(collab.NewCommentStore()),
		WithHistory(collab.NewHistoryLog()),
	}, opts...)
	return New(gridsync.NewEditCoordinator(reg), opts...), reg
}

func send(t *testing.T, h *Hub, s *Session, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	h.Handle(s, data)
}

// drain returns the frames queued on s without blocking.
func drain(t *testing.T, s *Session) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data, ok := <-s.Outbound():
			if !ok {
				return out
			}
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func usernames(frame map[string]any) []string {
	var names []string
	for _, u := range frame["users"].([]any) {
		names = append(names, u.(map[string]any)["username"].(string))
	}
	return names
}

func TestHub_JoinBroadcastsRoster(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	assert.Equal(t, StateConnected, s1.State())

	send(t, h, s1, map[string]any{"type": "join", "username": "alice"})
	assert.Equal(t, StateJoined, s1.State())
	assert.NotEmpty(t, s1.UserID())

	for _, s := range []*Session{s1, s2} {
		frames := drain(t, s)
		require.Len(t, frames, 1)
		assert.Equal(t, TypeUserPresence, frames[0]["type"])
		assert.Equal(t, []string{"alice"}, usernames(frames[0]))
	}

	send(t, h, s2, map[string]any{"type": "join"})
	roster := h.Roster("s")
	require.Len(t, roster, 2)
	assert.Equal(t, "red", roster[0].Color)
	assert.Equal(t, "Anonymous", roster[1].Username)
	assert.Equal(t, "blue", roster[1].Color)
	assert.Equal(t, StatusOnline, roster[1].Status)
}

func TestHub_JoinReusesStableID(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	send(t, h, s, map[string]any{"type": "join", "username": "alice", "userId": "u-42"})
	assert.Equal(t, "u-42", s.UserID())
}

func TestHub_UserJoinDefaults(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	send(t, h, s, map[string]any{"type": "user_join", "user": map[string]any{"username": "bob", "lastActive": 1700000000000}})

	roster := h.Roster("s")
	require.Len(t, roster, 1)
	assert.Equal(t, Member{UserID: "bob", Username: "bob", Color: DefaultColor, Status: StatusOnline, LastActive: 1700000000000}, roster[0])

	send(t, h, s, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "bob", "color": "#ff0000"}})
	roster = h.Roster("s")
	require.Len(t, roster, 1, "rejoining under a new id releases the old one")
	assert.Equal(t, "u1", roster[0].UserID)
	assert.Equal(t, "#ff0000", roster[0].Color)
}

func TestHub_CellUpdateBroadcastsToAll(t *testing.T) {
	h, reg := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	send(t, h, s1, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}})
	drain(t, s1)
	drain(t, s2)

	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "B2", "value": "42"})
	for _, s := range []*Session{s1, s2} {
		frames := drain(t, s)
		require.Len(t, frames, 1)
		assert.Equal(t, map[string]any{
			"type": "cell_update", "cellRef": "B2", "value": 42.0,
			"formula": nil, "version": 1.0, "userId": "u1",
		}, frames[0])
	}
	assert.Equal(t, 1, reg.Read("s", "B2").Version)
}

func TestHub_CellUpdateAnonymous(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	send(t, h, s, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "hi"})
	frames := drain(t, s)
	require.Len(t, frames, 1)
	assert.Nil(t, frames[0]["userId"])
	assert.Equal(t, "hi", frames[0]["value"])
}

func TestHub_CellUpdateRecomputesFormulas(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	send(t, h, s, map[string]any{"type": "cell_update", "cellRef": "B1", "value": nil, "formula": "SUM(A1:A3)"})
	send(t, h, s, map[string]any{"type": "cell_update", "cellRef": "A1", "value": 5})

	frames := drain(t, s)
	require.Len(t, frames, 3)
	assert.Equal(t, "SUM(A1:A3)", frames[0]["formula"])
	assert.Equal(t, "A1", frames[1]["cellRef"])
	assert.Equal(t, "B1", frames[2]["cellRef"])
	assert.Equal(t, 5.0, frames[2]["value"])
	assert.Equal(t, 2.0, frames[2]["version"])
	assert.Nil(t, frames[2]["userId"])
}

func TestHub_CellUpdateRejected(t *testing.T) {
	h, reg := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")

	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "A100", "value": "x"})
	frames := drain(t, s1)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeError, frames[0]["type"])
	assert.Equal(t, CodeInvalidReference, frames[0]["code"])

	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "A1", "formula": "INVALID(A1:A5)"})
	frames = drain(t, s1)
	require.Len(t, frames, 1)
	assert.Equal(t, CodeFormulaError, frames[0]["code"])
	assert.Equal(t, "A1", frames[0]["cellRef"])

	assert.Empty(t, drain(t, s2), "rejections are private")
	assert.Equal(t, 0, reg.Read("s", "A1").Version)
}

func TestHub_MalformedFrameKeepsSession(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	h.Handle(s, []byte("{not json"))
	h.Handle(s, []byte(`{"type":"cell_update","cellRef":"A1","value":{"x":1}}`))
	h.Handle(s, []byte(`{"type":"mystery"}`))
	assert.Equal(t, StateConnected, s.State())
	assert.Empty(t, drain(t, s))

	send(t, h, s, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "ok"})
	assert.Len(t, drain(t, s), 1)
}

func TestHub_CursorUpdate(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	send(t, h, s1, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}})
	drain(t, s2)

	send(t, h, s1, map[string]any{"type": "cursor_update", "position": map[string]any{"cellRef": "C3", "top": 10, "left": 20}})
	frames := drain(t, s2)
	require.Len(t, frames, 1)
	assert.Equal(t, "u1", frames[0]["userId"])
	assert.Equal(t, map[string]any{"cellRef": "C3", "top": 10.0, "left": 20.0}, frames[0]["position"])
}

func TestHub_CommentAndHistory(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	send(t, h, s1, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}})
	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "1"})
	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "two"})
	drain(t, s1)
	drain(t, s2)

	send(t, h, s1, map[string]any{"type": "comment_add", "cellRef": "A1", "text": "why two?"})
	for _, s := range []*Session{s1, s2} {
		frames := drain(t, s)
		require.Len(t, frames, 1)
		assert.Equal(t, TypeCommentAdded, frames[0]["type"])
		assert.Equal(t, "why two?", frames[0]["text"])
		assert.NotEmpty(t, frames[0]["commentId"])
	}

	send(t, h, s2, map[string]any{"type": "history_request", "cellRef": "A1"})
	assert.Empty(t, drain(t, s1), "history is a private reply")
	frames := drain(t, s2)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeHistoryResponse, frames[0]["type"])
	history := frames[0]["history"].([]any)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Nil(t, first["oldValue"])
	assert.Equal(t, 1.0, first["newValue"])
	assert.Equal(t, "u1", first["userId"])
	assert.Equal(t, "two", history[1].(map[string]any)["newValue"])

	send(t, h, s2, map[string]any{"type": "history_request", "cellRef": "Z9"})
	frames = drain(t, s2)
	require.Len(t, frames, 1)
	assert.Equal(t, []any{}, frames[0]["history"])
}

func TestHub_DisconnectBroadcastsOnce(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	send(t, h, s1, map[string]any{"type": "join", "username": "alice"})
	send(t, h, s2, map[string]any{"type": "join", "username": "bob"})
	drain(t, s2)

	h.Disconnect(s1)
	h.Disconnect(s1)
	assert.Equal(t, StateDisconnected, s1.State())

	frames := drain(t, s2)
	require.Len(t, frames, 1)
	assert.Equal(t, []string{"bob"}, usernames(frames[0]))
	assert.Equal(t, 1, h.Sessions("s"))

	send(t, h, s1, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "late"})
	assert.Empty(t, drain(t, s2), "a disconnected session is ignored")
}

func TestHub_UserLeave(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	send(t, h, s1, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}})
	send(t, h, s2, map[string]any{"type": "user_join", "user": map[string]any{"userId": "u2", "username": "bob"}})
	drain(t, s2)

	send(t, h, s2, map[string]any{"type": "user_leave", "userId": "u1"})
	assert.Equal(t, StateDisconnected, s1.State())
	frames := drain(t, s2)
	require.Len(t, frames, 1)
	assert.Equal(t, []string{"bob"}, usernames(frames[0]))

	send(t, h, s2, map[string]any{"type": "user_leave"})
	assert.Equal(t, StateDisconnected, s2.State())
	assert.Equal(t, 0, h.Sessions("s"))
	assert.Empty(t, h.Roster("s"))
}

func TestHub_UserLeaveRemovesAllSessions(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	watcher := h.Connect("s")
	join := map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}}
	send(t, h, s1, join)
	send(t, h, s2, join)
	drain(t, watcher)

	send(t, h, s1, map[string]any{"type": "user_leave", "userId": "u1"})
	assert.Equal(t, StateDisconnected, s1.State())
	assert.Equal(t, StateDisconnected, s2.State())
	assert.Empty(t, h.Roster("s"))
	assert.Equal(t, 1, h.Sessions("s"))

	frames := drain(t, watcher)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeUserPresence, frames[0]["type"])
	assert.Empty(t, frames[0]["users"])
}

func TestHub_RosterCountsSessionsPerUser(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Connect("s")
	s2 := h.Connect("s")
	watcher := h.Connect("s")
	join := map[string]any{"type": "user_join", "user": map[string]any{"userId": "u1", "username": "alice"}}
	send(t, h, s1, join)
	send(t, h, s2, join)
	require.Len(t, h.Roster("s"), 1)
	drain(t, watcher)

	h.Disconnect(s1)
	assert.Empty(t, drain(t, watcher), "user still present through s2")
	assert.Len(t, h.Roster("s"), 1)

	h.Disconnect(s2)
	frames := drain(t, watcher)
	require.Len(t, frames, 1)
	assert.Empty(t, frames[0]["users"])
}

func TestHub_SlowSessionDoesNotBlockOthers(t *testing.T) {
	h, _ := newTestHub(WithSendBuffer(1))
	slow := h.Connect("s")
	fast := h.Connect("s")

	for i := 0; i < 5; i++ {
		send(t, h, fast, map[string]any{"type": "cell_update", "cellRef": "A1", "value": i})
		frames := drain(t, fast)
		require.Len(t, frames, 1)
		assert.Equal(t, float64(i+1), frames[0]["version"])
	}
	assert.Len(t, drain(t, slow), 1)
	assert.Equal(t, StateConnected, slow.State())
}

func TestHub_SheetsAreIndependent(t *testing.T) {
	h, _ := newTestHub()
	a := h.Connect("a")
	b := h.Connect("b")
	send(t, h, a, map[string]any{"type": "join", "username": "alice"})
	send(t, h, a, map[string]any{"type": "cell_update", "cellRef": "A1", "value": "x"})
	assert.Empty(t, drain(t, b))
	assert.Empty(t, h.Roster("b"))
}

func TestHub_ApplyStructural(t *testing.T) {
	h, reg := newTestHub()
	s := h.Connect("s")
	_, err := reg.Write("s", "A2", gridsync.Text("1"), "")
	require.NoError(t, err)

	change, err := h.ApplyStructural("s", TypeSheetResized, func() (gridsync.SheetChange, error) {
		return reg.DeleteRow("s", 2), nil
	})
	require.NoError(t, err)
	assert.True(t, change.Applied)

	frames := drain(t, s)
	require.Len(t, frames, 2)
	assert.Equal(t, map[string]any{"type": "sheet_resized", "rows": 99.0, "columns": 25.0}, frames[0])
	assert.Equal(t, "A2", frames[1]["cellRef"])
	assert.Nil(t, frames[1]["value"])

	change, err = h.ApplyStructural("s", TypeSheetResized, func() (gridsync.SheetChange, error) {
		return reg.DeleteRow("s", 500), nil
	})
	require.NoError(t, err)
	assert.False(t, change.Applied)
	assert.Empty(t, drain(t, s), "ignored change is not broadcast")

	_, err = h.ApplyStructural("s", TypeSheetReloaded, func() (gridsync.SheetChange, error) {
		return gridsync.SheetChange{}, gridsync.ErrImport
	})
	assert.ErrorIs(t, err, gridsync.ErrImport)
	assert.Empty(t, drain(t, s))
}

func TestHub_ApplyStructuralOrderedWithEdits(t *testing.T) {
	h, reg := newTestHub(WithSendBuffer(10000))
	watcher := h.Connect("s")
	const editors, rounds = 4, 25

	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		editor := h.Connect("s")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < rounds; n++ {
				ref := "A" + strconv.Itoa(1+(i+n)%5)
				send(t, h, editor, map[string]any{"type": "cell_update", "cellRef": ref, "value": i*rounds + n})
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < rounds; n++ {
			_, err := h.ApplyStructural("s", TypeSheetResized, func() (gridsync.SheetChange, error) {
				return reg.SortColumn("s", "A", n%2 == 0), nil
			})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	last := make(map[string]map[string]any)
	for _, f := range drain(t, watcher) {
		if f["type"] == TypeCellUpdate {
			last[f["cellRef"].(string)] = f
		}
	}
	require.NotEmpty(t, last)
	for ref, f := range last {
		cell := reg.Read("s", ref)
		assert.Equal(t, float64(cell.Version), f["version"], ref)
		want, err := json.Marshal(cell.Value)
		require.NoError(t, err)
		got, err := json.Marshal(f["value"])
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(got), ref)
	}
}

func TestHub_RoomRemovedWhenEmpty(t *testing.T) {
	h, _ := newTestHub()
	s := h.Connect("s")
	h.Disconnect(s)
	assert.Nil(t, h.room("s"))

	h.Broadcast("s", SheetMessage{Type: TypeSheetReloaded})
	s2 := h.Connect("s")
	assert.Empty(t, drain(t, s2))
}

func TestHub_JoinUsesClock(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	h, _ := newTestHub(WithClock(func() time.Time { return at }))
	s := h.Connect("s")
	send(t, h, s, map[string]any{"type": "join", "username": "alice"})
	assert.Equal(t, float64(1700000000123), h.Roster("s")[0].LastActive)
}
