package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "roomies_flash"

// FlashKind is the category of a flash message, used as its CSS class.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashDanger  FlashKind = "danger"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

func setFlashes(w http.ResponseWriter, flashes []Flash) {
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the pending messages and expires the cookie. A
// malformed cookie is dropped silently.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
