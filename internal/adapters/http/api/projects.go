package api

import (
	"context"
	"fmt"
	"net/http"

	service "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/domain/types"
)

// ProjectsHandler serves /projects.
type ProjectsHandler struct {
	*base
}

// HandleCreate handles POST /projects.
func (h *ProjectsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_project"
	var req CreateProjectRequest
	h.mutation(w, r, op, &req, http.StatusCreated, func(ctx context.Context, caller model.Identity) (any, error) {
		p, err := h.deps.CreateProject(ctx, caller, req.Draft())
		if err != nil {
			return nil, err
		}
		return types.NewProjectView(p), nil
	})
}

// HandleAssign handles POST /projects/{id}/assign.
func (h *ProjectsHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const op = "api.assign_project"
	var req AssignRequest
	h.mutation(w, r, op, &req, http.StatusOK, func(ctx context.Context, caller model.Identity) (any, error) {
		id, err := pathProjectID(op, r)
		if err != nil {
			return nil, err
		}
		talent, err := model.ParseIdentity(req.Talent)
		if err != nil {
			return nil, err
		}
		p, err := h.deps.AssignProject(ctx, caller, id, talent)
		if err != nil {
			return nil, err
		}
		return types.NewProjectView(p), nil
	})
}

// HandleClose handles POST /projects/{id}/close.
func (h *ProjectsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_project"
	h.mutation(w, r, op, nil, http.StatusOK, func(ctx context.Context, caller model.Identity) (any, error) {
		id, err := pathProjectID(op, r)
		if err != nil {
			return nil, err
		}
		p, err := h.deps.CloseProject(ctx, caller, id)
		if err != nil {
			return nil, err
		}
		return types.NewProjectView(p), nil
	})
}

// HandleGet handles GET /projects/{id}.
func (h *ProjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathProjectID("api.get_project", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.deps.ProjectInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewProjectView(p))
}

// HandleList handles GET /projects?state=&client=&talent=&offset=&limit=.
func (h *ProjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_projects"
	q := r.URL.Query()
	var (
		f   service.ProjectFilter
		err error
	)
	if raw := q.Get("state"); raw != "" {
		state, ok := model.ParseProjectState(raw)
		if !ok {
			h.writeError(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("unknown state %q", raw)))
			return
		}
		f.State = state
	}
	if raw := q.Get("client"); raw != "" {
		if f.Client, err = model.ParseIdentity(raw); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if raw := q.Get("talent"); raw != "" {
		if f.Talent, err = model.ParseIdentity(raw); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if f.Offset, err = queryInt(op, r, "offset", 0); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.Limit, err = queryInt(op, r, "limit", 0); err != nil {
		h.writeError(w, r, err)
		return
	}

	items, total, err := h.deps.Projects(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Page[types.ProjectView]{
		Items:  types.Map(items, types.NewProjectView),
		Total:  total,
		Offset: f.Offset,
		Limit:  len(items),
	})
}
