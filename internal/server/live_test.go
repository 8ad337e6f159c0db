package server

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueboard/internal/auth"
	"issueboard/internal/live"
	"issueboard/internal/models"
	"issueboard/internal/storage/sqlite"
)

type wsMessage struct {
	Type     string           `json:"type"`
	Resolved bool             `json:"resolved"`
	User     *models.Identity `json:"user"`
	Token    string           `json:"token"`
	Issues   []models.Issue   `json:"issues"`
	State    string           `json:"state"`
	Warning  string           `json:"warning"`
	Similar  string           `json:"similar"`
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Message  string           `json:"message"`
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestLive_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	conn := dial(t, ts, "")
	msg := readUntil(t, conn, live.MsgSession)
	assert.True(t, msg.Resolved)
	assert.Nil(t, msg.User)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSubmit, Draft: &models.Draft{Title: "x", Description: "y", AssignedTo: "z"}}))
	msg = readUntil(t, conn, live.MsgError)
	assert.Equal(t, live.KindAuth, msg.Kind)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSignUp, Email: "a@x.com", Password: "secret1"}))
	msg = readUntil(t, conn, live.MsgSession)
	require.NotNil(t, msg.User)
	assert.Equal(t, "a@x.com", msg.User.Email)
	assert.NotEmpty(t, msg.Token)
	msg = readUntil(t, conn, live.MsgIssues)
	assert.Empty(t, msg.Issues)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSubmit, Draft: &models.Draft{
		Title: "Login bug", Description: "cannot sign in", Priority: models.PriorityHigh, AssignedTo: "bob",
	}}))
	created := readUntil(t, conn, live.MsgCreated)
	assert.NotEmpty(t, created.ID)
	form := readUntil(t, conn, live.MsgForm)
	assert.Equal(t, "editing", form.State)
	assert.Empty(t, form.Warning)

	msg = readUntil(t, conn, live.MsgIssues)
	require.Len(t, msg.Issues, 1)
	assert.Equal(t, "a@x.com", msg.Issues[0].CreatedBy)
	assert.Equal(t, models.StatusOpen, msg.Issues[0].Status)

	// duplicate guard then confirm
	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSubmit, Draft: &models.Draft{
		Title: "login", Description: "again", AssignedTo: "carol",
	}}))
	form = readUntil(t, conn, live.MsgForm)
	assert.Equal(t, "blocked", form.State)
	assert.Equal(t, "Login bug", form.Similar)
	assert.Contains(t, form.Warning, "Login bug")

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgConfirm}))
	readUntil(t, conn, live.MsgCreated)
	msg = readUntil(t, conn, live.MsgIssues)
	require.Len(t, msg.Issues, 2)

	// forbidden transition never reaches the store
	target := msg.Issues[1].ID
	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSetStatus, ID: target, Status: "Done"}))
	msg = readUntil(t, conn, live.MsgError)
	assert.Equal(t, live.KindTransition, msg.Kind)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSetStatus, ID: target, Status: "In Progress"}))
	msg = readUntil(t, conn, live.MsgIssues)
	for _, issue := range msg.Issues {
		if issue.ID == target {
			assert.Equal(t, models.StatusInProgress, issue.Status)
		}
	}

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgFilter, Status: "In Progress", Priority: "All"}))
	msg = readUntil(t, conn, live.MsgIssues)
	require.Len(t, msg.Issues, 1)
	assert.Equal(t, target, msg.Issues[0].ID)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSignOut}))
	msg = readUntil(t, conn, live.MsgSession)
	assert.Nil(t, msg.User)
	msg = readUntil(t, conn, live.MsgIssues)
	assert.Empty(t, msg.Issues, "board is cleared on sign out")
	assert.Eventually(t, func() bool { return srv.store.Subscribers() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestLive_ResumeWithToken(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()
	token := signUp(t, srv.Engine(), "a@x.com")
	createIssue(t, srv.Engine(), token, "Server crash")

	conn := dial(t, ts, token)
	msg := readUntil(t, conn, live.MsgSession)
	require.NotNil(t, msg.User)
	assert.Equal(t, "a@x.com", msg.User.Email)

	msg = readUntil(t, conn, live.MsgIssues)
	require.Len(t, msg.Issues, 1)

	// a write through REST reaches the live session
	createIssue(t, srv.Engine(), token, "Payment fails")
	msg = readUntil(t, conn, live.MsgIssues)
	require.Len(t, msg.Issues, 2)
	assert.Equal(t, "Payment fails", msg.Issues[0].Title)
}

func TestLive_InvalidTokenResolvesSignedOut(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	conn := dial(t, ts, "forged")
	msg := readUntil(t, conn, live.MsgError)
	assert.Equal(t, live.KindAuth, msg.Kind)
	msg = readUntil(t, conn, live.MsgSession)
	assert.True(t, msg.Resolved)
	assert.Nil(t, msg.User)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = readUntil(t, conn, live.MsgError)
	assert.Equal(t, live.KindProtocol, msg.Kind)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLive_SignInLogsUserIDNotEmail(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "board.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	srv := New(store, auth.NewProvider(store, []byte("test-secret"), time.Hour), logger, Options{})
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	conn := dial(t, ts, "")
	readUntil(t, conn, live.MsgSession)

	require.NoError(t, conn.WriteJSON(live.Command{Type: live.MsgSignUp, Email: "private@x.com", Password: "secret1"}))
	msg := readUntil(t, conn, live.MsgSession)
	require.NotNil(t, msg.User)

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "user="+msg.User.ID)
	}, 2*time.Second, 20*time.Millisecond)
	assert.NotContains(t, logs.String(), "private@x.com")
}
