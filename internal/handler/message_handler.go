package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/resp"
)

const (
	// DefaultHistoryLimit is the page size when the client does not ask
	// for one.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps a single history page.
	MaxHistoryLimit = 200
)

// HandleListMessages creates an HTTP HandlerFunc returning the most recent
// messages of a project, oldest first, for the history pane a client renders
// before its live events start flowing.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if projectID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		limit := DefaultHistoryLimit
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed <= 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}
		if limit > MaxHistoryLimit {
			limit = MaxHistoryLimit
		}

		messages, err := deps.Messages.ListRecent(r.Context(), projectID, limit)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		data := map[string]any{
			"projectId": projectID,
			"messages":  messages,
		}
		resp.RespondSuccess(w, r, data)
	}
}
