package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"user-records-service/internal/usecase/user"
	pkgerrors "user-records-service/pkg/errors"
	"user-records-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests for user record operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UserRequest is the body accepted by create and replace.
// Recommendations binds to pointers so a null element can be told apart from "".
type UserRequest struct {
	UserName        string    `json:"user_name"`
	UserEmail       string    `json:"user_email"`
	Age             *int      `json:"age"`
	Recommendations []*string `json:"recommendations"`
	ZipCode         *string   `json:"zip_code"`
}

// UserResponse represents a user record on the wire
type UserResponse struct {
	UserID          int64    `json:"user_id"`
	UserName        string   `json:"user_name"`
	UserEmail       string   `json:"user_email"`
	Age             *int     `json:"age"`
	Recommendations []string `json:"recommendations"`
	ZipCode         *string  `json:"zip_code"`
}

// RecommendationsResponse is the body of GET /{user_id}/recommendations
type RecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Detail string `json:"detail"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// ListUsers handles GET /
func (h *UserHandler) ListUsers(c *gin.Context) {
	resp, err := h.uc.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i := range resp.Users {
		users[i] = toResponse(&resp.Users[i])
	}

	c.JSON(http.StatusOK, users)
}

// CreateUser handles POST /
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req UserRequest
	recs, ok := h.bindBody(c, &req)
	if !ok {
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Name:            req.UserName,
		Email:           req.UserEmail,
		Age:             req.Age,
		Recommendations: recs,
		ZipCode:         req.ZipCode,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// UpdateUser handles PUT /:user_id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UserRequest
	recs, ok := h.bindBody(c, &req)
	if !ok {
		return
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:              id,
		Name:            req.UserName,
		Email:           req.UserEmail,
		Age:             req.Age,
		Recommendations: recs,
		ZipCode:         req.ZipCode,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// DeleteUser handles DELETE /:user_id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	resp, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Detail: resp.Message})
}

// GetRecommendations handles GET /:user_id/recommendations
func (h *UserHandler) GetRecommendations(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	resp, err := h.uc.GetRecommendations(c.Request.Context(), user.GetRecommendationsRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	recs := resp.Recommendations
	if recs == nil {
		recs = []string{}
	}
	c.JSON(http.StatusOK, RecommendationsResponse{Recommendations: recs})
}

func (h *UserHandler) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("user_id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid user id", zap.String("user_id", idStr), zap.Error(err))
		// No stored identity can exceed int64, so an out of range id is simply absent.
		if errors.Is(err, strconv.ErrRange) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:  "not_found",
				Detail: fmt.Sprintf("User ID %s does not exist", idStr),
			})
			return 0, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "invalid_input",
			Detail: "user_id must be an integer",
		})
		return 0, false
	}
	return id, true
}

// bindBody decodes the request body and returns its recommendations as plain
// strings. A null list element is rejected rather than stored as "".
func (h *UserHandler) bindBody(c *gin.Context, req *UserRequest) ([]string, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "invalid_input",
			Detail: "request body must be a JSON object with user_name, user_email, age, recommendations and zip_code",
		})
		return nil, false
	}

	recs, ok := recommendationsFrom(req.Recommendations)
	if !ok {
		logger.WithContext(c.Request.Context(), h.log).Warn("null recommendation in request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "invalid_input",
			Detail: "recommendations must not contain null",
		})
		return nil, false
	}
	return recs, true
}

func recommendationsFrom(in []*string) ([]string, bool) {
	if in == nil {
		return nil, true
	}
	out := make([]string, len(in))
	for i, r := range in {
		if r == nil {
			return nil, false
		}
		out[i] = *r
	}
	return out, true
}

// handleError converts usecase errors to HTTP responses
func (h *UserHandler) handleError(c *gin.Context, err error) {
	status := pkgerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context(), h.log).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)

	c.JSON(status, ErrorResponse{
		Error:  pkgerrors.Code(err),
		Detail: pkgerrors.Detail(err),
	})
}

func toResponse(u *user.User) UserResponse {
	recs := u.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return UserResponse{
		UserID:          u.ID,
		UserName:        u.Name,
		UserEmail:       u.Email,
		Age:             u.Age,
		Recommendations: recs,
		ZipCode:         u.ZipCode,
	}
}
