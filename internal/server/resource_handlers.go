package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/service"
)

// DeletedResponse is written after a successful delete.
type DeletedResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type resourceAPI struct {
	svc *service.Service
}

func (a *resourceAPI) list(c *gin.Context) {
	recs, err := a.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, recs)
}

func (a *resourceAPI) get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := a.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (a *resourceAPI) create(c *gin.Context) {
	candidate, err := a.decode(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := a.svc.Create(c.Request.Context(), candidate)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rec)
}

func (a *resourceAPI) update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	incoming, err := a.decode(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := a.svc.Update(c.Request.Context(), id, incoming)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (a *resourceAPI) delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := a.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, DeletedResponse{
		Message:    a.svc.Kind().DeletedMessage(id),
		StatusCode: http.StatusOK,
	})
}

func (a *resourceAPI) decode(c *gin.Context) (resource.Record, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return resource.Record{}, apperr.InvalidArgument("Invalid input: request body could not be read")
	}
	return a.svc.Kind().DecodeJSON(body)
}
