package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:        http.StatusNotFound,
		KindValidation:      http.StatusBadRequest,
		KindInvalidArgument: http.StatusBadRequest,
		KindDataAccess:      http.StatusInternalServerError,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		Kind("bogus"):       http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, Status(k), "kind %q", k)
	}
}

func TestTranslateNotFound(t *testing.T) {
	status, body := Translate(NotFoundf("Book with ID %d not found", 99))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body.Error)
	assert.Equal(t, "Book with ID 99 not found", body.Message)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Nil(t, body.Messages)
}

func TestTranslateValidationKeepsAllMessages(t *testing.T) {
	msgs := []string{"Title is required", "Price must be greater than 0"}
	status, body := Translate(Validation(msgs))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, MsgValidationFailed, body.Message)
	assert.Equal(t, msgs, body.Messages)

	// the constructor copies its input
	msgs[0] = "changed"
	assert.Equal(t, "Title is required", body.Messages[0])
}

func TestTranslateDataAccessHidesCause(t *testing.T) {
	cause := errors.New(`pq: relation "books" does not exist`)
	err := DataAccess("A database error occurred while fetching books.", cause)

	status, body := Translate(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "A database error occurred while fetching books.", body.Message)
	assert.NotContains(t, body.Message, "relation")
	assert.ErrorIs(t, err, cause)
}

func TestFromUnknownErrorIsGeneric(t *testing.T) {
	status, body := Translate(sql.ErrConnDone)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, string(KindDataAccess), body.Error)
	assert.Equal(t, MsgUnexpected, body.Message)
}

func TestFromWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Forbidden())
	ae := From(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, KindForbidden, ae.Kind)
	assert.True(t, Is(wrapped, KindForbidden))
	assert.False(t, Is(wrapped, KindUnauthenticated))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Nil(t, From(nil))
}

func TestAuthErrors(t *testing.T) {
	s, body := Translate(Unauthenticated())
	assert.Equal(t, http.StatusUnauthorized, s)
	assert.Equal(t, "unauthenticated", body.Error)

	s, body = Translate(Forbidden())
	assert.Equal(t, http.StatusForbidden, s)
	assert.Equal(t, "forbidden", body.Error)
}
