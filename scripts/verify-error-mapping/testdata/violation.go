package violation

import (
	"errors"
	"net/http"

	"github.com/ManuGH/crazifier/internal/session"
)

func Violate(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusOK)

	if errors.Is(err, session.ErrBusy) {
		w.WriteHeader(http.StatusConflict)
	}

	var rerr *session.RenderError
	if errors.As(err, &rerr) {
		w.WriteHeader(http.StatusBadGateway)
	}
}
