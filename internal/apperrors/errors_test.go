package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("group not found"), http.StatusNotFound},
		{Forbidden("not a member"), http.StatusForbidden},
		{Unauthenticated("missing identity"), http.StatusUnauthorized},
		{Validation("content is required"), http.StatusBadRequest},
		{Conflict("name taken"), http.StatusConflict},
		{fmt.Errorf("load group: %w", NotFound("group not found")), http.StatusNotFound},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "Server Error", PublicMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "group not found", PublicMessage(fmt.Errorf("wrap: %w", NotFound("group not found"))))
}
