package handler

import (
	"net/http"

	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication and profile endpoints.
type AuthHandler struct {
	authSvc      ports.AuthService
	reportingSvc ports.ReportingService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService, reportingSvc ports.ReportingService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, reportingSvc: reportingSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Account created", toAuthResponse(result))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), ports.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAuthResponse(result))
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateProfile handles PUT /api/v1/users/profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authSvc.UpdateProfile(c.Request.Context(), actor.UserID, ports.UpdateProfileRequest{
		Username: req.Username,
		Phone:    req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Profile updated", user)
}

// UserStats handles GET /api/v1/users/stats/:userId.
func (h *AuthHandler) UserStats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId", "user")
	if !ok {
		return
	}

	stats, err := h.reportingSvc.UserStats(c.Request.Context(), actor, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func toAuthResponse(r *ports.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt.Unix(),
		User:      r.User,
	}
}

// HealthCheck handles GET /health, a deep check of every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
