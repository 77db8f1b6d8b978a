package api

import (
	"net/http"
	"testing"

	"github.com/mscrnt/streamops-go/internal/apperr"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.NotFound, "missing"), http.StatusNotFound},
		{apperr.New(apperr.Validation, "bad"), http.StatusBadRequest},
		{apperr.New(apperr.Conflict, "dup"), http.StatusConflict},
		{apperr.New(apperr.Guarded, "paused"), http.StatusTooManyRequests},
		{apperr.New(apperr.Timeout, "slow"), http.StatusGatewayTimeout},
		{apperr.New(apperr.Internal, "boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusForError(c.err); got != c.want {
			t.Errorf("statusForError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
