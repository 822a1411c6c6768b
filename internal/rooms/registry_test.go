package rooms

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id   string
	full bool

	mu     sync.Mutex
	events []Event
}

func newPeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(ev Event) bool {
	if p.full {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *fakePeer) take() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func counts(evs []Event) []int {
	var out []int
	for _, ev := range evs {
		if ev.Name == EventConnections {
			out = append(out, ev.Data.(Connections).Count)
		}
	}
	return out
}

func connected(r *Registry, ids ...string) map[string]*fakePeer {
	out := map[string]*fakePeer{}
	for _, id := range ids {
		p := newPeer(id)
		r.Connect(p)
		out[id] = p
	}
	return out
}

func TestJoinBroadcastsCountToAllMembers(t *testing.T) {
	r := New()
	p := connected(r, "a", "b")

	r.Join("a", "n1")
	require.Equal(t, []int{1}, counts(p["a"].take()))

	r.Join("b", "n1")
	require.Equal(t, []int{2}, counts(p["a"].take()))
	require.Equal(t, []int{2}, counts(p["b"].take()))
	require.Equal(t, 2, r.Count("n1"))
}

func TestJoinIsIdempotent(t *testing.T) {
	r := New()
	p := connected(r, "a")
	r.Join("a", "n1")
	r.Join("a", "n1")
	require.Equal(t, 1, r.Count("n1"))
	require.Equal(t, []int{1, 1}, counts(p["a"].take()))
}

func TestJoinIgnoresEmptyNoteAndUnknownConnection(t *testing.T) {
	r := New()
	p := connected(r, "a")
	r.Join("a", "")
	r.Join("ghost", "n1")
	require.Equal(t, 0, r.RoomCount())
	require.Empty(t, p["a"].take())
}

func TestLeave(t *testing.T) {
	r := New()
	p := connected(r, "a", "b")
	r.Join("a", "n1")
	r.Join("b", "n1")
	p["a"].take()
	p["b"].take()

	r.Leave("a", "n1")
	require.Equal(t, 1, r.Count("n1"))
	require.Empty(t, p["a"].take())
	require.Equal(t, []int{1}, counts(p["b"].take()))

	// leaving a room you are not in changes nothing
	r.Leave("a", "n1")
	r.Leave("a", "other")
	require.Empty(t, p["b"].take())

	r.Leave("b", "n1")
	require.Equal(t, 0, r.RoomCount())
	require.Empty(t, p["b"].take())
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := New()
	p := connected(r, "a", "b", "c", "outsider")
	for _, id := range []string{"a", "b", "c"} {
		r.Join(id, "n1")
	}
	for _, fp := range p {
		fp.take()
	}

	r.Broadcast("a", "n1", "hello")
	require.Empty(t, p["a"].take())
	require.Empty(t, p["outsider"].take())
	for _, id := range []string{"b", "c"} {
		evs := p[id].take()
		require.Len(t, evs, 1)
		require.Equal(t, EventUpdate, evs[0].Name)
		require.Equal(t, Update{NoteID: "n1", Content: "hello"}, evs[0].Data)
	}

	// a non-member sender reaches every member
	r.Broadcast("outsider", "n1", "x")
	for _, id := range []string{"a", "b", "c"} {
		require.Len(t, p[id].take(), 1)
	}

	r.Broadcast("a", "", "ignored")
	r.Broadcast("a", "no-room", "ignored")
	for _, fp := range p {
		require.Empty(t, fp.take())
	}
}

func TestDisconnectFromTwoRoomsSendsOneCountPerRoom(t *testing.T) {
	r := New()
	p := connected(r, "x", "y", "z")
	r.Join("x", "A")
	r.Join("x", "B")
	r.Join("y", "A")
	r.Join("z", "B")
	for _, fp := range p {
		fp.take()
	}

	r.Disconnect("x")
	require.Equal(t, []int{1}, counts(p["y"].take()))
	require.Equal(t, []int{1}, counts(p["z"].take()))
	require.Empty(t, p["x"].take())
	require.Equal(t, 1, r.Count("A"))
	require.Equal(t, 1, r.Count("B"))
	require.Equal(t, 2, r.Connections())

	// the registry never calls a disconnected peer again
	r.Broadcast("y", "A", "after")
	r.Join("x", "A")
	require.Empty(t, p["x"].take())
}

func TestLeaveAllEvictsEmptyRooms(t *testing.T) {
	r := New()
	p := connected(r, "x")
	r.Join("x", "A")
	r.Join("x", "B")
	r.LeaveAll("x")
	require.Equal(t, 0, r.RoomCount())
	require.Empty(t, r.Rooms("x"))
	require.Equal(t, []int{1, 1}, counts(p["x"].take()))

	// still connected: may join again
	r.Join("x", "C")
	require.Equal(t, 1, r.Count("C"))
}

func TestDroppedSendDoesNotStopFanOut(t *testing.T) {
	r := New()
	p := connected(r, "slow", "ok")
	p["slow"].full = true
	r.Join("slow", "n")
	r.Join("ok", "n")
	r.Broadcast("nobody", "n", "content")
	evs := p["ok"].take()
	require.Len(t, evs, 2)
	require.Equal(t, EventUpdate, evs[1].Name)
	require.Equal(t, 2, r.Count("n"))
}

func TestSweepEmptyRooms(t *testing.T) {
	r := New()
	connected(r, "a")
	r.Join("a", "live")
	r.mu.Lock()
	r.rooms["stale"] = set{}
	r.mu.Unlock()

	require.Equal(t, 1, r.SweepEmptyRooms())
	require.Equal(t, 1, r.RoomCount())
	require.Equal(t, 0, r.SweepEmptyRooms())
}

func TestRunStopsWithContext(t *testing.T) {
	r := New()
	r.mu.Lock()
	r.rooms["stale"] = set{}
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return r.RoomCount() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestCountsMatchMembership drives random operations and checks the registry
// against a plain model after each one.
func TestCountsMatchMembership(t *testing.T) {
	r := New()
	conns := []string{"c0", "c1", "c2", "c3", "c4"}
	notes := []string{"n0", "n1", "n2"}
	peers := connected(r, conns...)
	model := map[string]map[string]bool{}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		c := conns[rng.Intn(len(conns))]
		n := notes[rng.Intn(len(notes))]
		switch rng.Intn(4) {
		case 0, 1:
			r.Join(c, n)
			if model[n] == nil {
				model[n] = map[string]bool{}
			}
			model[n][c] = true
		case 2:
			r.Leave(c, n)
			delete(model[n], c)
		case 3:
			r.LeaveAll(c)
			for _, members := range model {
				delete(members, c)
			}
		}

		rooms := 0
		for _, nn := range notes {
			want := len(model[nn])
			assert.Equal(t, want, r.Count(nn), "step %d note %s", i, nn)
			if want > 0 {
				rooms++
			}
		}
		require.Equal(t, rooms, r.RoomCount(), "step %d: empty rooms must not linger", i)
	}
	for _, p := range peers {
		p.take()
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", w)
			r.Connect(newPeer(id))
			for i := 0; i < 200; i++ {
				note := fmt.Sprintf("n%d", i%4)
				r.Join(id, note)
				r.Broadcast(id, note, "x")
				if i%3 == 0 {
					r.Leave(id, note)
				}
			}
			r.Disconnect(id)
		}(w)
	}
	wg.Wait()
	require.Equal(t, 0, r.RoomCount())
	require.Equal(t, 0, r.Connections())
}
