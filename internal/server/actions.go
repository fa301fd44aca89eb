// ABOUTME: Form action handlers that translate posted fields into shell transitions and view mutations.
// ABOUTME: Boundary input is validated here before it reaches the shell.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/jfeddern/OpsDeck/internal/views"
)

var errUnknownView = errors.New("unknown view")

var errUnknownAction = fmt.Errorf("%w: unknown action", views.ErrInvalidArgument)

// navHandler selects a view and/or switches role. Both fields are optional.
func (s *Server) navHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	if raw := r.PostFormValue("role"); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			s.respond(w, r, sh, err)
			return
		}
		sh.SwitchRole(role)
	}

	if raw := r.PostFormValue("view"); raw != "" {
		id := rbac.ViewID(raw)
		if _, ok := s.registry.Lookup(id); !ok {
			s.respond(w, r, sh, fmt.Errorf("%w: %q", errUnknownView, raw))
			return
		}
		sh.SelectView(id)
	}

	s.respond(w, r, sh, nil)
}

func (s *Server) editorHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	err := shell.Act(sh, views.IDEditor, func(e *views.Editor) error {
		switch r.PostFormValue("action") {
		case "draft":
			return e.SetDraft(r.PostFormValue("title"), r.PostFormValue("content"))
		case "save":
			if r.PostForm.Has("content") {
				if err := e.SetDraft(r.PostFormValue("title"), r.PostFormValue("content")); err != nil {
					return err
				}
			}
			return e.Save()
		case "polish":
			if r.PostForm.Has("content") {
				if err := e.SetDraft(r.PostFormValue("title"), r.PostFormValue("content")); err != nil {
					return err
				}
			}
			return e.Polish()
		case "eyecare":
			e.ToggleEyeCare()
			return nil
		default:
			return errUnknownAction
		}
	})
	s.respond(w, r, sh, err)
}

func (s *Server) tasksHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	err := shell.Act(sh, views.IDTasks, func(b *views.TaskBoard) error {
		switch r.PostFormValue("action") {
		case "create":
			priority, ok := types.ParsePriority(r.PostFormValue("priority"))
			if !ok {
				return fmt.Errorf("%w: priority %q", views.ErrInvalidArgument, r.PostFormValue("priority"))
			}
			_, err := b.Create(r.PostFormValue("title"), r.PostFormValue("description"), priority)
			return err
		case "move":
			status, ok := types.ParseTaskStatus(r.PostFormValue("status"))
			if !ok {
				return fmt.Errorf("%w: status %q", views.ErrInvalidArgument, r.PostFormValue("status"))
			}
			return b.Move(r.PostFormValue("id"), status)
		case "delete":
			return b.Delete(r.PostFormValue("id"))
		default:
			return errUnknownAction
		}
	})
	s.respond(w, r, sh, err)
}

func (s *Server) scannerHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	err := shell.Act(sh, views.IDScanner, func(h *views.SecurityHub) error {
		switch r.PostFormValue("action") {
		case "code":
			return h.SetCode(r.PostFormValue("code"))
		case "scan":
			if r.PostForm.Has("code") {
				if err := h.SetCode(r.PostFormValue("code")); err != nil {
					return err
				}
			}
			return h.Scan()
		case "clear":
			return h.Clear()
		default:
			return errUnknownAction
		}
	})
	s.respond(w, r, sh, err)
}

func (s *Server) communityHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	err := shell.Act(sh, views.IDCommunity, func(c *views.Community) error {
		switch r.PostFormValue("action") {
		case "flag":
			return c.Flag(r.PostFormValue("id"))
		default:
			return errUnknownAction
		}
	})
	s.respond(w, r, sh, err)
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request, sh *shell.Shell) {
	err := shell.Act(sh, views.IDSettings, func(st *views.Settings) error {
		switch r.PostFormValue("action") {
		case "toggle":
			enabled, err := formBool(r, "enabled")
			if err != nil {
				return err
			}
			return st.SetToggle(r.PostFormValue("key"), enabled)
		case "retention":
			return st.SetRetention(r.PostFormValue("value"))
		case "route":
			enabled, err := formBool(r, "enabled")
			if err != nil {
				return err
			}
			return st.SetRoute(r.PostFormValue("route"), enabled)
		case "apply":
			return st.Apply()
		case "discard":
			return st.Discard()
		default:
			return errUnknownAction
		}
	})
	s.respond(w, r, sh, err)
}

func formBool(r *http.Request, key string) (bool, error) {
	v, err := strconv.ParseBool(r.PostFormValue(key))
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", views.ErrInvalidArgument, key)
	}
	return v, nil
}
