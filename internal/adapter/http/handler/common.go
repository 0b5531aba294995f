package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/adapter/http/middleware"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bindJSON decodes, validates and trims the request body. On failure the
// error response has already been written.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// bindQuery decodes and validates query parameters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// currentActor returns the authenticated actor or writes a 401.
func currentActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingToken())
		return domain.Actor{}, false
	}
	return actor, true
}

// uuidParam parses a path parameter as a UUID. Malformed IDs are reported as
// not found so they are indistinguishable from unknown ones.
func uuidParam(c *gin.Context, name, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

func pageRequest(q dto.PageQuery) ports.PageRequest {
	return ports.PageRequest{Page: q.Page, Limit: q.Limit}
}

func mustUUID(s string) uuid.UUID {
	// validated by the "uuid" binding tag
	return uuid.MustParse(s)
}
