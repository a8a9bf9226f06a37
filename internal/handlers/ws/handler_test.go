package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/omj-2025.net/internal/core/services/notify"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/handlers"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

type stubService struct {
	submission *domain.Submission
}

func (s *stubService) Submit(context.Context, domain.Identity, domain.ProblemKey, []string) (*domain.Submission, domain.Admission, error) {
	panic("not used")
}

func (s *stubService) GetSubmission(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	if s.submission != nil && s.submission.ID == id {
		return s.submission, nil
	}
	return nil, nil
}

func (s *stubService) ListSubmissions(context.Context, domain.Identity, domain.ProblemKey, int) ([]*domain.Submission, error) {
	return nil, nil
}

type fixture struct {
	server *httptest.Server
	hub    *notify.Hub
	sub    *domain.Submission
	owner  domain.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	owner := domain.Identity{UserID: uuid.New(), Username: "uczestnik", Email: "uczestnik@example.com"}
	sub := domain.NewSubmission(owner.UserID,
		domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}, []string{"a.jpg"})
	hub := notify.NewHub(nopLogger{})
	hub.Register(sub.ID.String())

	f := &fixture{hub: hub, sub: sub, owner: owner}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(handlers.WithIdentity(req.Context(), f.owner)))
		})
	})
	NewHandler(&stubService{submission: sub}, hub, nopLogger{}).RegisterRoutes(api)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/api/submissions/" + f.sub.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestStreamDeliversEventsAndCloses(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	id := f.sub.ID.String()

	f.hub.Publish(id, domain.StatusEvent(id, "Analizuję rozwiązanie..."))
	f.hub.Publish(id, domain.CompletedEvent(id, 6, "Pełne rozwiązanie."))

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventStatus, event.Type)

	event = readEvent(t, conn)
	require.Equal(t, domain.EventCompleted, event.Type)
	require.NotNil(t, event.Score)
	assert.Equal(t, 6, *event.Score)

	// terminal delivered, server must close the stream
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var extra domain.Event
	err := conn.ReadJSON(&extra)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamAnswersPing(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(domain.Event{Type: domain.EventPing}))

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventPong, event.Type)
}

func TestStreamReplaysTerminalForLateClient(t *testing.T) {
	f := newFixture(t)
	id := f.sub.ID.String()
	f.hub.Publish(id, domain.ErrorEvent(id, "Przepraszamy, coś poszło nie tak."))

	conn := f.dial(t)
	event := readEvent(t, conn)

	assert.Equal(t, domain.EventError, event.Type)
	assert.NotEmpty(t, event.Error)
}

func TestStreamUnknownSubmission(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/api/submissions/" + uuid.NewString() + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamHiddenFromOtherUsers(t *testing.T) {
	f := newFixture(t)
	// authenticated, but not the submission's owner
	f.owner = domain.Identity{UserID: uuid.New(), Username: "intruz", Email: "intruz@example.com"}

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/api/submissions/" + f.sub.ID.String() + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
