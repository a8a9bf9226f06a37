// package ws streams submission progress events over WebSocket
package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/services/notify"
	"gitlab.com/omj-2025.net/internal/core/services/submission"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/handlers"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The session token already gates the endpoint
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the per-submission notification channel
type Handler struct {
	submissionService submission.ISubmissionService
	hub               *notify.Hub
	logger            primary.Logger
}

func NewHandler(submissionService submission.ISubmissionService, hub *notify.Hub, logger primary.Logger) *Handler {
	return &Handler{
		submissionService: submissionService,
		hub:               hub,
		logger:            logger,
	}
}

// RegisterRoutes registers the routes for Handler on the /api
// subrouter
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/submissions/{submissionId}/ws", h.Stream).Methods("GET")
}

// Stream upgrades the connection and relays the submission's events
// until the terminal event has been delivered or the client leaves.
// Clients connecting after grading finished still receive the retained
// terminal event. The stream belongs to the submission's owner; other
// identities get the same not found answer as a missing id.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	identity, ok := handlers.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["submissionId"])
	if err != nil {
		handlers.ResponseError(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := h.submissionService.GetSubmission(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		handlers.ResponseError(w, "Failed to get submission", http.StatusInternalServerError)
		return
	}
	if sub == nil || sub.UserID != identity.UserID {
		handlers.ResponseError(w, errs.SubmissionNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "submissionId", id, "error", err)
		return
	}
	defer conn.Close()

	subscription := h.hub.Subscribe(id.String())
	defer h.hub.Unsubscribe(subscription)

	pong := make(chan struct{}, 1)
	done := make(chan struct{})
	go h.readLoop(conn, pong, done)

	for {
		select {
		case event, ok := <-subscription.Events():
			if !ok {
				// terminal delivered, close the stream cleanly
				deadline := time.Now().Add(writeWait)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
			if err := h.writeEvent(conn, event); err != nil {
				return
			}
		case <-pong:
			if err := h.writeEvent(conn, domain.Event{Type: domain.EventPong}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, event domain.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Debug("Failed to write event", "error", err)
		return err
	}
	return nil
}

// readLoop drains client frames, answering application-level pings.
// Everything else from the client is ignored.
func (h *Handler) readLoop(conn *websocket.Conn, pong chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	for {
		var frame domain.Event
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type == domain.EventPing {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}
}
