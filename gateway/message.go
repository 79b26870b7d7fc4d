package gateway

import (
	"chat-relay/domain"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
)

type PostMessageRequest struct {
	Text     string  `json:"text"`
	Receiver *string `json:"receiver" validate:"omitempty,max=255"`
}

type MessageResponse struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID *string   `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func toMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
}

// CreateMessage handles POST /messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var body PostMessageRequest
	if err := h.decode(w, r, &body); err != nil {
		h.badRequest(w, "%v", err)
		return
	}

	message, err := h.relay.Submit(r.Context(), domain.PostMessageCommand{
		Credential: credential(r),
		Text:       body.Text,
		Receiver:   body.Receiver,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

// GetMessages handles GET /messages?since=<id>
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	cmd := domain.GetMessagesCommand{Credential: credential(r)}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.badRequest(w, "since must be a message id, got %q", raw)
			return
		}
		cmd.SinceID = &since
	}

	messages, err := h.relay.History(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
		return toMessageResponse(m)
	}))
}
