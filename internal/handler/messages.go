package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/chat"
	"github.com/johndosdos/chatsync/internal/model"
)

// maxBodyBytes leaves room for a MaxTextLen text whose every rune is
// written as a JSON \uXXXX escape.
const maxBodyBytes = 6*chat.MaxTextLen + 1024

type textBody struct {
	Text string `json:"text"`
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, error) {
	var body textBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrInvalid, err)
	}
	return body.Text, nil
}

// submit runs req as the request's author. On failure the error response
// has already been written.
func submit(w http.ResponseWriter, r *http.Request, hub *chat.Hub, req model.MutationRequest) (model.Event, bool) {
	author := internal.AuthorFromContext(r.Context())
	req.UserID = author.UserID
	req.Username = author.Username

	ev, err := hub.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return ev, false
	}
	return ev, true
}

// ServeMessages returns the recent messages, newest first.
func ServeMessages(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, hub.Messages())
	}
}

// ServeCreate adds a message and returns the stored record.
func ServeCreate(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := decodeText(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if ev, ok := submit(w, r, hub, model.MutationRequest{Mutation: model.Created, Text: text}); ok {
			writeJSON(w, r, http.StatusCreated, ev.Node)
		}
	}
}

// ServeEdit replaces the text of one of the caller's messages.
func ServeEdit(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := decodeText(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ev, ok := submit(w, r, hub, model.MutationRequest{
			Mutation: model.Updated,
			ID:       chi.URLParam(r, "id"),
			Text:     text,
		})
		if ok {
			writeJSON(w, r, http.StatusOK, ev.Node)
		}
	}
}

// ServeDelete removes one of the caller's messages.
func ServeDelete(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, ok := submit(w, r, hub, model.MutationRequest{
			Mutation: model.Deleted,
			ID:       chi.URLParam(r, "id"),
		})
		if ok {
			writeJSON(w, r, http.StatusOK, map[string]string{"id": ev.Node.ID})
		}
	}
}
