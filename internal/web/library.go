package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

const (
	msgPagesOutOfRange    = "pages must be a whole number from 1 to 1000000"
	msgCapacityOutOfRange = "capacity must be a whole number from 1 to 1000000"
	msgUnexpected         = "something went wrong, try again"
)

var errOutOfRange = errors.New("number out of range")

// indexPage is the data of the library page. The form fields carry the
// submitted values back after a failed submission.
type indexPage struct {
	Username string
	Library  *domain.Library

	BookError string
	BookForm  bookForm

	ShowAddShelf   bool
	ShelfError     string
	ShelfForm      shelfForm
	EditingShelfID string
	ShelfErrors    map[string]string
}

type bookForm struct {
	Title   string
	Pages   string
	ShelfID string
}

type shelfForm struct {
	Name     string
	Capacity string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, indexPage{})
}

// renderIndex loads the library and renders it with page's form state.
func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, page indexPage) {
	user := currentUser(r.Context())
	lib, err := h.library.Library(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("load library", "user_id", user.ID, "error", err)
		http.Error(w, "Could not load the library.", http.StatusInternalServerError)
		return
	}
	page.Username = user.Username
	page.Library = lib
	if page.ShelfErrors == nil {
		page.ShelfErrors = map[string]string{}
	}
	h.render(w, status, "index", page)
}

func (h *Handler) addBook(w http.ResponseWriter, r *http.Request) {
	form := bookForm{
		Title:   r.PostFormValue("title"),
		Pages:   r.PostFormValue("pages"),
		ShelfID: r.PostFormValue("shelfId"),
	}

	pages, err := boundedInt(form.Pages, domain.MaxPages)
	if err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, indexPage{BookError: msgPagesOutOfRange, BookForm: form})
		return
	}

	user := currentUser(r.Context())
	_, err = h.library.AddBook(r.Context(), user.ID, service.AddBookRequest{
		Title:   form.Title,
		Pages:   pages,
		ShelfID: form.ShelfID,
	})
	if err != nil {
		h.renderIndex(w, r, statusFor(err), indexPage{BookError: h.message(err), BookForm: form})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := h.library.DeleteBook(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("delete book", "user_id", user.ID, "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// moveBook only reports a full shelf. A missing book or shelf, or no shelf
// chosen, sends the user back to the library unchanged.
func (h *Handler) moveBook(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	_, err := h.library.MoveBook(r.Context(), user.ID, chi.URLParam(r, "id"), r.PostFormValue("shelfId"))
	if domainerrors.Is(err, domainerrors.ErrCapacityExceeded) {
		h.renderIndex(w, r, http.StatusBadRequest, indexPage{BookError: domainerrors.Message(err)})
		return
	}
	if err != nil {
		h.logger.Debug("move book", "user_id", user.ID, "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) createShelf(w http.ResponseWriter, r *http.Request) {
	form := shelfForm{
		Name:     r.PostFormValue("name"),
		Capacity: r.PostFormValue("capacity"),
	}
	page := indexPage{ShowAddShelf: true, ShelfForm: form}

	capacity, err := boundedInt(form.Capacity, domain.MaxShelfCapacity)
	if err != nil {
		page.ShelfError = msgCapacityOutOfRange
		h.renderIndex(w, r, http.StatusBadRequest, page)
		return
	}

	user := currentUser(r.Context())
	if _, err := h.library.CreateShelf(r.Context(), user.ID, service.CreateShelfRequest{Name: form.Name, Capacity: capacity}); err != nil {
		page.ShelfError = h.message(err)
		h.renderIndex(w, r, statusFor(err), page)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// editShelf renames a shelf and changes its capacity. Empty fields are left
// unchanged. Errors render inline under the shelf being edited.
func (h *Handler) editShelf(w http.ResponseWriter, r *http.Request) {
	shelfID := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var req service.EditShelfRequest
	if r.PostForm.Has("name") {
		name := r.PostFormValue("name")
		req.Name = &name
	}
	if raw := strings.TrimSpace(r.PostFormValue("capacity")); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil || capacity > domain.MaxShelfCapacity {
			h.shelfError(w, r, shelfID, http.StatusBadRequest, msgCapacityOutOfRange)
			return
		}
		req.Capacity = &capacity
	}

	user := currentUser(r.Context())
	_, err := h.library.EditShelf(r.Context(), user.ID, shelfID, req)
	switch {
	case err == nil, domainerrors.Is(err, domainerrors.ErrNotFound):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.shelfError(w, r, shelfID, statusFor(err), h.message(err))
	}
}

func (h *Handler) shelfError(w http.ResponseWriter, r *http.Request, shelfID string, status int, msg string) {
	h.renderIndex(w, r, status, indexPage{
		EditingShelfID: shelfID,
		ShelfErrors:    map[string]string{shelfID: msg},
	})
}

func (h *Handler) deleteShelf(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := h.library.DeleteShelf(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("delete shelf", "user_id", user.ID, "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// message returns the text shown for err. Internal errors are logged and
// replaced with a generic message.
func (h *Handler) message(err error) string {
	if domainerrors.CodeOf(err) == domainerrors.CodeInternal {
		h.logger.Error("form request failed", "error", err)
		return msgUnexpected
	}
	return domainerrors.Message(err)
}

// boundedInt parses raw as an integer in [1, limit].
func boundedInt(raw string, limit int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > limit {
		return 0, errOutOfRange
	}
	return n, nil
}
