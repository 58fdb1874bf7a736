package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/auth"
	"github.com/adityaxdubey/whisper-rebellion/internal/embedding"
	"github.com/adityaxdubey/whisper-rebellion/internal/models"
	"github.com/adityaxdubey/whisper-rebellion/internal/search"
	"github.com/adityaxdubey/whisper-rebellion/internal/store"
)

// hubStore is a minimal in-memory MessageStore for hub tests.
type hubStore struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	messages map[int64]*models.Message
	nextID   int64
}

func newHubStore() *hubStore {
	return &hubStore{
		users:    map[int64]*models.User{},
		messages: map[int64]*models.Message{},
	}
}

func (s *hubStore) Close()                         {}
func (s *hubStore) Ping(ctx context.Context) error { return nil }

func (s *hubStore) CreateUser(ctx context.Context, name, email, hash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.users) + 1)
	u := &models.User{ID: id, Name: name, Email: email}
	s.users[id] = u
	return u, nil
}

func (s *hubStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *hubStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (s *hubStore) ListUsers(ctx context.Context, excludeID int64) ([]models.User, error) {
	return nil, nil
}

func (s *hubStore) CreateMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := &models.Message{ID: s.nextID, SenderID: senderID, ReceiverID: receiverID, Text: text, CreatedAt: time.Now()}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (s *hubStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id], nil
}

func (s *hubStore) UpdateVector(ctx context.Context, id int64, vector []float32, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.Vector = vector
		msg.VectorSource = source
	}
	return nil
}

func (s *hubStore) FindBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	return nil, nil
}

func (s *hubStore) FindInvolving(ctx context.Context, userID int64) ([]models.Message, error) {
	return nil, nil
}

func (s *hubStore) FindConversation(ctx context.Context, a, b int64, limit int) ([]models.Message, error) {
	return nil, nil
}

func (s *hubStore) ListUnindexed(ctx context.Context, limit int) ([]models.Message, error) {
	return nil, nil
}

func (s *hubStore) SupportsVectorSearch() bool { return false }

func (s *hubStore) NearestMessages(ctx context.Context, viewerID, targetUserID int64, queryVec []float32, limit int) ([]store.VectorHit, error) {
	return nil, store.ErrVectorSearchUnsupported
}

func newTestHub(st store.MessageStore, tokens *auth.Tokens) *Hub {
	embedder := embedding.NewService(nil, nil, zerolog.Nop())
	indexer := search.NewIndexer(st, embedder, zerolog.Nop())
	return NewHub(st, tokens, indexer, zerolog.Nop())
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	return ev
}

func TestHandleWSRejectsBadToken(t *testing.T) {
	st := newHubStore()
	tokens := auth.NewTokens("test-secret", time.Hour)
	hub := newTestHub(st, tokens)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if hub.Registry().Len() != 0 {
		t.Fatal("nothing may be registered for a failed handshake")
	}
}

func TestWebsocketMessageFlow(t *testing.T) {
	st := newHubStore()
	tokens := auth.NewTokens("test-secret", time.Hour)
	hub := newTestHub(st, tokens)

	alice, _ := st.CreateUser(context.Background(), "Alice", "alice@example.com", "")
	bob, _ := st.CreateUser(context.Background(), "Bob", "bob@example.com", "")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	aliceToken, _ := tokens.Issue(alice.ID)
	bobToken, _ := tokens.Issue(bob.ID)

	aliceConn := dial(t, srv, aliceToken)
	bobConn := dial(t, srv, bobToken)

	if ev := readEvent(t, aliceConn); ev.Type != models.EventConnected {
		t.Fatalf("expected connected event, got %q", ev.Type)
	}
	if ev := readEvent(t, bobConn); ev.Type != models.EventConnected {
		t.Fatalf("expected connected event, got %q", ev.Type)
	}

	send := models.SendMessageRequest{
		Type:       models.EventSendMessage,
		ReceiverID: bob.ID,
		Text:       "hello bob",
	}
	if err := aliceConn.WriteJSON(send); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	delivered := readEvent(t, bobConn)
	if delivered.Type != models.EventNewMessage {
		t.Fatalf("expected new_message, got %q", delivered.Type)
	}
	if delivered.Payload == nil || delivered.Payload.Text != "hello bob" {
		t.Fatalf("bad payload: %+v", delivered.Payload)
	}
	if delivered.Payload.SenderName != "Alice" {
		t.Errorf("expected sender Alice, got %q", delivered.Payload.SenderName)
	}

	ack := readEvent(t, aliceConn)
	if ack.Type != models.EventMessageSent {
		t.Fatalf("expected message_sent ack, got %q", ack.Type)
	}

	st.mu.Lock()
	stored := len(st.messages)
	st.mu.Unlock()
	if stored != 1 {
		t.Fatalf("expected 1 persisted message, got %d", stored)
	}
}

func TestWebsocketIgnoresMalformedFrames(t *testing.T) {
	st := newHubStore()
	tokens := auth.NewTokens("test-secret", time.Hour)
	hub := newTestHub(st, tokens)

	alice, _ := st.CreateUser(context.Background(), "Alice", "alice@example.com", "")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	token, _ := tokens.Issue(alice.ID)
	conn := dial(t, srv, token)
	readEvent(t, conn) // connected

	// Frames that don't parse or carry an unknown type get no reply at all.
	silent := []string{
		"not json",
		`{"type":"unknown","receiver_id":1,"message":"x"}`,
	}
	for _, frame := range silent {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	// A recognized send_message with bad fields gets an error event back.
	invalid := []string{
		`{"type":"send_message","receiver_id":0,"message":"x"}`,
		`{"type":"send_message","receiver_id":1,"message":""}`,
	}
	for _, frame := range invalid {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		ev := readEvent(t, conn)
		if ev.Type != models.EventError {
			t.Fatalf("frame %q: expected error event, got %q", frame, ev.Type)
		}
		if ev.Info == "" {
			t.Fatalf("frame %q: error event carries no description", frame)
		}
	}

	// Confirm nothing was persisted for any of the frames.
	time.Sleep(100 * time.Millisecond)
	st.mu.Lock()
	stored := len(st.messages)
	st.mu.Unlock()
	if stored != 0 {
		t.Fatalf("expected no persisted messages, got %d", stored)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	st := newHubStore()
	tokens := auth.NewTokens("test-secret", time.Hour)
	hub := newTestHub(st, tokens)

	c := testClient()
	c.ID = "h1"
	hub.registry.Add(c.ID, c, 5)

	hub.disconnect(c)
	if hub.Registry().Len() != 0 {
		t.Fatal("client still registered after disconnect")
	}
	// Second call must not panic on the closed channel.
	hub.disconnect(c)
}
