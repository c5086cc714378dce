package api

import (
	"net/http"
	"strconv"

	"github.com/okian/talentboard/internal/domain/types"
)

// EventsHandler serves the event log.
type EventsHandler struct {
	*base
}

// HandleList handles GET /events?after=&limit=. Next is the cursor for the
// following page and equals after when the page is empty.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		var err error
		if after, err = strconv.ParseUint(raw, 10, 64); err != nil {
			h.writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	limit, err := queryInt(op, r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.deps.Events(r.Context(), after, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := types.EventPage{Items: types.Map(events, types.NewEventView), Next: after}
	if n := len(events); n > 0 {
		page.Next = events[n-1].Seq
	}
	writeJSON(w, http.StatusOK, page)
}
