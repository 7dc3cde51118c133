package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "store": a.StoreDriver}
	if a.Hub != nil {
		body["stream_subscribers"] = a.Hub.Subscribers()
	}
	a.json(w, http.StatusOK, body)
}
