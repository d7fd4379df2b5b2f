package http

import (
	"errors"
	"fmt"
	"net/http"

	"roomies/internal/core"
	"roomies/internal/services"
)

const membersPath = "/members/add"

const (
	msgNameRequired  = "Name is required."
	msgNameEmpty     = "Name cannot be empty."
	msgMemberExists  = "Member '%s' already exists."
	msgMemberAdded   = "Member '%s' added successfully."
	msgMemberRenamed = "Member renamed successfully."
	msgMemberInUse   = "Cannot delete member who is linked to existing transactions."
	msgMemberDeleted = "Member deleted successfully."
)

type membersPage struct {
	pageData
	Members []core.Person
	Name    string
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	s.renderMembers(w, r, http.StatusOK, "", "")
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMembers(w, r, http.StatusBadRequest, "", msgInvalidForm)
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))

	p, err := s.ledger.AddMember(r.Context(), name)
	switch {
	case errors.Is(err, services.ErrEmptyName):
		s.renderMembers(w, r, http.StatusUnprocessableEntity, name, msgNameRequired)
	case errors.Is(err, services.ErrDuplicateMember):
		s.renderMembers(w, r, http.StatusUnprocessableEntity, name, fmt.Sprintf(msgMemberExists, name))
	case err != nil:
		s.serverError(w, r, "Add member failed", err)
	default:
		RedirectWith(membersPath, FlashSuccess, fmt.Sprintf(msgMemberAdded, p.Name)).Write(w)
	}
}

func (s *Server) handleRenameMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		RedirectWith(membersPath, FlashDanger, msgInvalidForm).Write(w)
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))

	err := s.ledger.RenameMember(r.Context(), id, name)
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, services.ErrEmptyName):
		RedirectWith(membersPath, FlashDanger, msgNameEmpty).Write(w)
	case errors.Is(err, services.ErrDuplicateMember):
		RedirectWith(membersPath, FlashDanger, fmt.Sprintf(msgMemberExists, name)).Write(w)
	case err != nil:
		s.serverError(w, r, "Rename member failed", err)
	default:
		RedirectWith(membersPath, FlashSuccess, msgMemberRenamed).Write(w)
	}
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	err := s.ledger.DeleteMember(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, services.ErrMemberInUse):
		RedirectWith(membersPath, FlashDanger, msgMemberInUse).Write(w)
	case err != nil:
		s.serverError(w, r, "Delete member failed", err)
	default:
		RedirectWith(membersPath, FlashSuccess, msgMemberDeleted).Write(w)
	}
}

func (s *Server) renderMembers(w http.ResponseWriter, r *http.Request, status int, name, danger string) {
	members, err := s.ledger.MembersByName(r.Context())
	if err != nil {
		s.serverError(w, r, "List members failed", err)
		return
	}
	data := membersPage{
		pageData: s.newPage(w, r, "Members", "members"),
		Members:  members,
		Name:     name,
	}
	if danger != "" {
		data.Flashes = append(data.Flashes, Flash{Kind: FlashDanger, Message: danger})
	}
	s.render(w, r, status, "members.html", data)
}
