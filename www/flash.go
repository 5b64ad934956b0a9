package www

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "gasquota"

// flashes carries one-shot error messages across the post/redirect/get
// round trip.
type flashes struct {
	store  sessions.Store
	logger *slog.Logger
}

func newFlashes(logger *slog.Logger, secret []byte) *flashes {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &flashes{store: store, logger: logger}
}

func (f *flashes) add(w http.ResponseWriter, r *http.Request, msg string) {
	session, err := f.store.Get(r, sessionName)
	if err != nil {
		// A cookie signed with an old secret, the new session replaces it
		f.logger.Debug("invalid session cookie", slog.Any("error", err))
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		f.logger.Error("saving flash message", slog.Any("error", err))
	}
}

// pop returns the pending messages and clears them.
func (f *flashes) pop(w http.ResponseWriter, r *http.Request) []string {
	session, err := f.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		f.logger.Error("clearing flash messages", slog.Any("error", err))
	}

	msgs := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}
