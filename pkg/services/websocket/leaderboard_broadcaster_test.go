package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

type fakeSource struct {
	updates chan *models.Leaderboard
	stopped chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{updates: make(chan *models.Leaderboard, 4), stopped: make(chan struct{})}
}

func (f *fakeSource) Subscribe(_ context.Context, cohortID string) (<-chan *models.Leaderboard, func()) {
	f.updates <- &models.Leaderboard{CohortID: cohortID, Entries: []models.LeaderboardEntry{{StudentID: "s1", Rank: 1}}}
	return f.updates, func() { close(f.stopped) }
}

func serve(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.Serve(context.Background(), conn, "cohort-a")
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

type leaderboardMessage struct {
	Type     string             `json:"type"`
	ClientID string             `json:"client_id"`
	Data     models.Leaderboard `json:"data"`
}

func readLeaderboard(t *testing.T, conn *websocket.Conn) leaderboardMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg leaderboardMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestBroadcaster_StreamsLeaderboards(t *testing.T) {
	source := newFakeSource()
	b := NewBroadcaster(source)
	conn := serve(t, b)
	defer conn.Close()

	first := readLeaderboard(t, conn)
	assert.Equal(t, TypeLeaderboard, first.Type)
	assert.NotEmpty(t, first.ClientID)
	assert.Equal(t, "cohort-a", first.Data.CohortID)
	require.Len(t, first.Data.Entries, 1)
	assert.Equal(t, 1, b.ClientCount())

	source.updates <- &models.Leaderboard{CohortID: "cohort-a", Entries: []models.LeaderboardEntry{{StudentID: "s2", Rank: 1}, {StudentID: "s1", Rank: 2}}}
	second := readLeaderboard(t, conn)
	require.Len(t, second.Data.Entries, 2)
	assert.Equal(t, "s2", second.Data.Entries[0].StudentID)
}

func TestBroadcaster_ClientCloseEndsSession(t *testing.T) {
	source := newFakeSource()
	b := NewBroadcaster(source)
	conn := serve(t, b)

	readLeaderboard(t, conn)
	require.NoError(t, conn.Close())

	select {
	case <-source.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released")
	}
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_StopClosesSessions(t *testing.T) {
	source := newFakeSource()
	b := NewBroadcaster(source)
	conn := serve(t, b)
	defer conn.Close()

	readLeaderboard(t, conn)
	b.Stop()
	b.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
