package httpx

import (
	"errors"
	"net/http"

	"github.com/tillbook/tillbook/internal/shared"
)

var kindStatus = map[shared.ErrorKind]int{
	shared.KindMissing:        http.StatusBadRequest,
	shared.KindInvalid:        http.StatusBadRequest,
	shared.KindMismatch:       http.StatusBadRequest,
	shared.KindTooShort:       http.StatusBadRequest,
	shared.KindBadCredentials: http.StatusUnauthorized,
	shared.KindSelfDelete:     http.StatusForbidden,
	shared.KindLastAdmin:      http.StatusForbidden,
	shared.KindTaken:          http.StatusConflict,
	shared.KindInUse:          http.StatusConflict,
	shared.KindNotFound:       http.StatusNotFound,
	shared.KindInsufficient:   http.StatusUnprocessableEntity,
	shared.KindStore:          http.StatusInternalServerError,
}

// RespondError maps tagged domain errors to problem-details responses.
// Store failures never leak engine details to the client.
func RespondError(w http.ResponseWriter, err error) {
	var tagged *shared.Error
	if !errors.As(err, &tagged) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	status, ok := kindStatus[tagged.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if tagged.Kind == shared.KindStore {
		Problem(w, status, "Internal Error", "")
		return
	}

	JSON(w, status, ProblemDetail{
		Title:  string(tagged.Kind),
		Status: status,
		Detail: tagged.Detail,
		Refs:   tagged.Refs,
	})
}
