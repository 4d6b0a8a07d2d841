package server

import (
	"snapshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/v1/user/:id/profile
// @Summary Get profile
// @Description User with posts (newest first), bookmarked posts and follower/following ids
// @Tags user
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,user=models.Profile}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/{id}/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"user": profile})
}

// EditProfile handles POST /api/v1/user/profile/edit
// @Summary Edit profile
// @Description Update bio, gender and profile photo. Omitted fields are unchanged.
// @Tags user
// @Accept multipart/form-data
// @Produce json
// @Param bio formData string false "Bio (max 150 characters)"
// @Param gender formData string false "male or female"
// @Param profilePhoto formData file false "Profile photo"
// @Success 200 {object} object{success=bool,message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/profile/edit [post]
func (s *Server) EditProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	in := service.EditProfileInput{UserID: userID}
	if bio := c.FormValue("bio"); bio != "" {
		in.Bio = &bio
	}
	if gender := c.FormValue("gender"); gender != "" {
		in.Gender = &gender
	}
	photo, err := readUpload(c, "profilePhoto", service.ImageKindAvatar)
	if err != nil {
		return err
	}
	in.Photo = photo

	user, err := s.userService.EditProfile(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Profile updated", fiber.Map{"user": user})
}

// SuggestedUsers handles GET /api/v1/user/suggested
// @Summary Suggested users
// @Description Other users to follow. An empty list is a normal result.
// @Tags user
// @Produce json
// @Success 200 {object} object{success=bool,users=[]models.User}
// @Security BearerAuth
// @Router /user/suggested [get]
func (s *Server) SuggestedUsers(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	users, err := s.userService.SuggestedUsers(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"users": users})
}

// FollowOrUnfollow handles POST /api/v1/user/followorunfollow/:id
// @Summary Follow or unfollow
// @Description Toggle following the user. Following notifies them if they are online.
// @Tags user
// @Produce json
// @Param id path int true "Target user ID"
// @Success 200 {object} object{success=bool,message=string,type=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/followorunfollow/{id} [post]
func (s *Server) FollowOrUnfollow(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	targetID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	state, err := s.followService.FollowOrUnfollow(c.UserContext(), userID, targetID)
	if err != nil {
		return err
	}

	message := "Followed successfully"
	if state == service.Unfollowed {
		message = "Unfollowed successfully"
	}
	return respond(c, fiber.StatusOK, message, fiber.Map{"type": state})
}
