package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cybrsens.io/internal/authz"
	"cybrsens.io/internal/directory"
)

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := a.directory.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var updates map[string]any
	if err := decodeJSON(w, r, &updates); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.UpdateOrganization(r.Context(), chi.URLParam(r, "orgID"), updates, actor)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := a.directory.ListMembers(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if members == nil {
		members = []directory.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (a *API) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req inviteMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	member, err := a.directory.Invite(r.Context(), chi.URLParam(r, "orgID"), req.Email, authz.Role(req.Role), actor)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	member, err := a.directory.UpdateRole(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "userID"), authz.Role(req.Role), actor)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	if err := a.directory.Remove(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "userID"), actor); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrDuplicateMember):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
