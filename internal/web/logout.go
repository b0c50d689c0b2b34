package web

import (
	"net/http"

	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/session"
)

// LogoutForm renders the logout confirmation page
func (h *Handler) LogoutForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "logout.html", nil); err != nil {
		h.logger.Error("failed to render logout template", logging.Err(err))
	}
}

// Logout clears the session cookie and redirects to the site root
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	profile := session.CookieProfile{Secure: h.cfg.Secure}
	http.SetCookie(w, profile.ClearCookie())
	http.Redirect(w, r, h.siteRoot(r), http.StatusFound)
}
