package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/session"
)

type signinRequest struct {
	Login      string `json:"useridOrEmail"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type identifyRequest struct {
	Login string `json:"userIdOrEmail"`
}

type answerRequest struct {
	UserID string `json:"userid"`
	Answer string `json:"securityAnswer"`
}

type resetRequest struct {
	UserID      string `json:"userid"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	UserID          string `json:"userid"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type usernameRequest struct {
	UserID      string `json:"userid"`
	NewUsername string `json:"newUsername"`
}

type emailRequest struct {
	UserID   string `json:"userid"`
	NewEmail string `json:"newEmail"`
}

type accountRequest struct {
	UserID string `json:"userid"`
}

func (s *Server) signup(c *gin.Context) {
	var in stockwise.SignupInput
	if !s.bind(c, &in) {
		return
	}
	if _, err := s.tracker.Signup(c.Request.Context(), in); err != nil {
		if errors.Is(err, stockwise.ErrUsernameTaken) {
			s.failWith(c, http.StatusConflict, "User already exists")
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

func (s *Server) signin(c *gin.Context) {
	var req signinRequest
	if !s.bind(c, &req) {
		return
	}
	u, err := s.tracker.Signin(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.RememberMe && s.sessions != nil {
		token, expires, err := s.sessions.Issue(u.UserID)
		if err != nil {
			s.fail(c, err)
			return
		}
		http.SetCookie(c.Writer, s.sessions.Cookie(token, expires))
	}
	c.JSON(http.StatusOK, gin.H{"userid": u.UserID, "email": u.Email, "message": "Signin successful"})
}

func (s *Server) identifyUser(c *gin.Context) {
	var req identifyRequest
	if !s.bind(c, &req) {
		return
	}
	ident, err := s.tracker.IdentifyUser(c.Request.Context(), req.Login)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":             gin.H{"userid": ident.UserID},
		"securityQuestion": ident.SecurityQuestion,
	})
}

func (s *Server) verifySecurityAnswer(c *gin.Context) {
	var req answerRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.tracker.VerifySecurityAnswer(c.Request.Context(), req.UserID, req.Answer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Security answer verified"})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.tracker.ResetPassword(c.Request.Context(), req.UserID, req.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !s.bind(c, &req) {
		return
	}
	err := s.tracker.ChangePassword(c.Request.Context(), req.UserID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, stockwise.ErrIncorrectPassword) {
		s.failWith(c, http.StatusUnauthorized, "Incorrect current password")
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (s *Server) logout(c *gin.Context) {
	s.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (s *Server) updateUsername(c *gin.Context) {
	var req usernameRequest
	if !s.bind(c, &req) {
		return
	}
	u, err := s.tracker.UpdateUsername(c.Request.Context(), req.UserID, req.NewUsername)
	if err != nil {
		s.fail(c, err)
		return
	}
	// A remembered session names the old user.
	if s.sessions != nil && req.UserID != u.UserID {
		if _, ok := s.sessions.FromRequest(c.Request); ok {
			if token, expires, err := s.sessions.Issue(u.UserID); err == nil {
				http.SetCookie(c.Writer, s.sessions.Cookie(token, expires))
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (s *Server) updateEmail(c *gin.Context) {
	var req emailRequest
	if !s.bind(c, &req) {
		return
	}
	u, err := s.tracker.UpdateEmail(c.Request.Context(), req.UserID, req.NewEmail)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (s *Server) deleteAccount(c *gin.Context) {
	var req accountRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.tracker.DeleteAccount(c.Request.Context(), req.UserID); err != nil {
		s.fail(c, err)
		return
	}
	s.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (s *Server) clearSession(c *gin.Context) {
	if s.sessions != nil {
		http.SetCookie(c.Writer, s.sessions.Clear())
		return
	}
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
}
