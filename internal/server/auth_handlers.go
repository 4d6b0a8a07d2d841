package server

import (
	"fmt"
	"log/slog"

	"snapshare/internal/middleware"
	"snapshare/internal/models"
	"snapshare/internal/service"
	"snapshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/v1/user/register
// @Summary Register
// @Description Create an account
// @Tags user
// @Accept json
// @Produce json
// @Param request body validation.RegisterRequest true "Signup request"
// @Success 201 {object} object{success=bool,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /user/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req validation.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}

	if _, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, "Account created successfully", nil)
}

// Login handles POST /api/v1/user/login
// @Summary Login
// @Description Authenticate, set the session cookie and return the token with the user's profile
// @Tags user
// @Accept json
// @Produce json
// @Param request body validation.LoginRequest true "Login credentials"
// @Success 200 {object} object{success=bool,message=string,token=string,user=models.Profile}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /user/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req validation.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}

	profile, err := s.userService.Authenticate(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	token, _, err := s.generateToken(profile.ID, profile.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	s.setSessionCookie(c, token)

	return respond(c, fiber.StatusOK, fmt.Sprintf("Welcome back %s", profile.Username), fiber.Map{
		"token": token,
		"user":  profile,
	})
}

// Logout handles GET /api/v1/user/logout
// @Summary Logout
// @Description Clear the session cookie and revoke the presented token
// @Tags user
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Router /user/logout [get]
func (s *Server) Logout(c *fiber.Ctx) error {
	if tokenString := tokenFromRequest(c); tokenString != "" {
		if claims, err := s.parseToken(tokenString); err == nil {
			if err := s.revoke(c.UserContext(), claims); err != nil {
				middleware.Logger.WarnContext(c.UserContext(), "failed to revoke token",
					slog.String("error", err.Error()),
				)
			}
		}
	}
	s.clearSessionCookie(c)
	return respond(c, fiber.StatusOK, "Logged out successfully", nil)
}
