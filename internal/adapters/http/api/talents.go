package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/talentboard/internal/adapters/directory"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/domain/types"
)

// TalentsHandler serves /talents.
type TalentsHandler struct {
	*base
}

// HandleRegister handles POST /talents.
func (h *TalentsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_talent"
	var req ProfileRequest
	h.mutation(w, r, op, &req, http.StatusCreated, func(ctx context.Context, caller model.Identity) (any, error) {
		p, err := req.Profile()
		if err != nil {
			return nil, WrapKind(op, ErrBadRequest, err)
		}
		t, err := h.deps.RegisterTalent(ctx, caller, p)
		if err != nil {
			return nil, err
		}
		return types.NewTalentView(t), nil
	})
}

// HandleUpdate handles PUT /talents/me.
func (h *TalentsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_talent"
	var req ProfileRequest
	h.mutation(w, r, op, &req, http.StatusOK, func(ctx context.Context, caller model.Identity) (any, error) {
		p, err := req.Profile()
		if err != nil {
			return nil, WrapKind(op, ErrBadRequest, err)
		}
		t, err := h.deps.UpdateTalentProfile(ctx, caller, p)
		if err != nil {
			return nil, err
		}
		return types.NewTalentView(t), nil
	})
}

// HandleVerify handles POST /talents/{identity}/verify.
func (h *TalentsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.verify_talent"
	h.mutation(w, r, op, nil, http.StatusOK, func(ctx context.Context, caller model.Identity) (any, error) {
		target, err := pathIdentity(r)
		if err != nil {
			return nil, err
		}
		t, err := h.deps.VerifyTalent(ctx, caller, target)
		if err != nil {
			return nil, err
		}
		return types.NewTalentView(t), nil
	})
}

// HandleGet handles GET /talents/{identity}. Unknown identities answer 200
// with registered=false.
func (h *TalentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.deps.TalentInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewTalentView(t))
}

// HandleSearch handles GET /talents?q=&certification=&verified=&min_rating=&offset=&limit=.
func (h *TalentsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search_talents"
	q := r.URL.Query()
	offset, err := queryInt(op, r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(op, r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minRating, err := queryInt(op, r, "min_rating", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var verified bool
	if raw := q.Get("verified"); raw != "" {
		if verified, err = strconv.ParseBool(raw); err != nil {
			h.writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	query := directory.Query{
		Text:          q.Get("q"),
		Certification: q.Get("certification"),
		VerifiedOnly:  verified,
		MinRating:     uint64(minRating),
		Offset:        offset,
		Limit:         limit,
	}
	items, total := h.deps.SearchTalents(r.Context(), query)
	writeJSON(w, http.StatusOK, types.Page[types.TalentView]{
		Items:  types.Map(items, types.NewTalentView),
		Total:  total,
		Offset: offset,
		Limit:  len(items),
	})
}
