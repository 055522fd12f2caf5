package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ignisight/attendance-server/internal/auth"
)

func userJSON(email, name, college, department string) gin.H {
	return gin.H{
		"email":      email,
		"name":       name,
		"college":    college,
		"department": department,
	}
}

// Register creates a teacher account.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		College    string `json:"college"`
		Department string `json:"department"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Email, req.Name, req.College, req.Department, req.Password)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": userJSON(u.Email, u.Name, u.College, u.Department)})
}

// Login verifies credentials and issues an access token.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	token, err := auth.Issue(u.Email, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": token.Value,
		"expiresAt":   token.ExpiresAt.Unix(),
		"user":        userJSON(u.Email, u.Name, u.College, u.Department),
	})
}

// ForgotPassword issues a password-reset OTP.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if err := h.users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ResetPassword consumes an OTP and sets a new password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// claimsEmail pulls the authenticated account email set by the auth
// middleware.
func claimsEmail(c *gin.Context) string {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims.Email
}

// ChangePassword verifies the current password and sets a new one.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), claimsEmail(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateProfile updates the authenticated account's profile fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		College    string `json:"college"`
		Department string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), claimsEmail(c), req.Name, req.College, req.Department)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userJSON(u.Email, u.Name, u.College, u.Department)})
}
