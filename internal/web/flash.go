package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const flashCookieName = "tb_flash"

// SetFlash stores messages to be shown on the next rendered page, usually after a redirect.
func SetFlash(w http.ResponseWriter, messages ...string) {
	if len(messages) == 0 {
		return
	}

	messagesJson, err := json.Marshal(messages)
	if err != nil {
		log.Errorf("marshal flash messages: %s", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(messagesJson),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes returns pending flash messages and clears them.
func PopFlashes(w http.ResponseWriter, r *http.Request) []string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	messagesJson, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		log.Debugf("invalid flash cookie: %s", err)
		return nil
	}

	var messages []string
	if err := json.Unmarshal(messagesJson, &messages); err != nil {
		log.Debugf("invalid flash cookie: %s", err)
		return nil
	}

	return messages
}

// Redirect sets the flash messages, if any, and redirects with 303 See Other.
func Redirect(w http.ResponseWriter, r *http.Request, url string, messages ...string) {
	SetFlash(w, messages...)
	http.Redirect(w, r, url, http.StatusSeeOther)
}
