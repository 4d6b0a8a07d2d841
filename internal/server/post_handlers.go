package server

import (
	"snapshare/internal/models"
	"snapshare/internal/service"
	"snapshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// AddPost handles POST /api/v1/post/addpost
// @Summary Create post
// @Description Upload an image with an optional caption
// @Tags post
// @Accept multipart/form-data
// @Produce json
// @Param caption formData string false "Caption"
// @Param image formData file true "Image"
// @Success 201 {object} object{success=bool,message=string,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/addpost [post]
func (s *Server) AddPost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	upload, err := readUpload(c, "image", service.ImageKindPost)
	if err != nil {
		return err
	}
	var imageURL string
	if upload != nil {
		if imageURL, err = s.imageService.Process(c.UserContext(), *upload); err != nil {
			return err
		}
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: userID,
		Caption:  c.FormValue("caption"),
		Image:    imageURL,
	})
	if err != nil {
		if imageURL != "" {
			s.imageService.Discard(c.UserContext(), imageURL)
		}
		return err
	}
	return respond(c, fiber.StatusCreated, "New post added", fiber.Map{"post": post})
}

// GetAllPosts handles GET /api/v1/post/all
// @Summary Feed
// @Description Every post newest first, with author, likes and comments
// @Tags post
// @Produce json
// @Param limit query int false "Page size, max 100; omitted returns every post"
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Security BearerAuth
// @Router /post/all [get]
func (s *Server) GetAllPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListFeed(c.UserContext(), parsePage(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"posts": posts})
}

// GetUserPosts handles GET /api/v1/post/userpost/all
// @Summary Own posts
// @Description The caller's posts newest first
// @Tags post
// @Produce json
// @Param limit query int false "Page size, max 100; omitted returns every post"
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Security BearerAuth
// @Router /post/userpost/all [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	posts, err := s.postService.ListUserPosts(c.UserContext(), userID, parsePage(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"posts": posts})
}

// LikePost handles GET /api/v1/post/:id/like
// @Summary Like post
// @Description Idempotent. The author is notified the first time if online.
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/{id}/like [get]
func (s *Server) LikePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.LikePost(c.UserContext(), userID, postID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Post liked", nil)
}

// DislikePost handles GET /api/v1/post/:id/dislike
// @Summary Unlike post
// @Description Idempotent removal of the caller's like
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/{id}/dislike [get]
func (s *Server) DislikePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.UnlikePost(c.UserContext(), userID, postID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Post disliked", nil)
}

// AddComment handles POST /api/v1/post/:id/comment
// @Summary Comment
// @Tags post
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body validation.CommentRequest true "Comment"
// @Success 201 {object} object{success=bool,message=string,comment=models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/{id}/comment [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req validation.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return err
	}

	comment, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		AuthorID: userID,
		PostID:   postID,
		Text:     req.Text,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Comment added", fiber.Map{"comment": comment})
}

// GetComments handles POST /api/v1/post/:id/comment/all
// @Summary Comments
// @Description The post's comments newest first
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,comments=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/{id}/comment/all [post]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"comments": comments})
}

// DeletePost handles DELETE /api/v1/post/delete/:id
// @Summary Delete post
// @Description Author only. Removes the post with its likes, comments and bookmarks.
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/delete/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		ActorID: userID,
		PostID:  postID,
	}); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Post deleted", nil)
}

// BookmarkPost handles GET /api/v1/post/:id/bookmark
// @Summary Toggle bookmark
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string,type=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post/{id}/bookmark [get]
func (s *Server) BookmarkPost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	state, err := s.postService.ToggleBookmark(c.UserContext(), userID, postID)
	if err != nil {
		return err
	}

	message := "Post bookmarked"
	if state == service.BookmarkUnsaved {
		message = "Post removed from bookmarks"
	}
	return respond(c, fiber.StatusOK, message, fiber.Map{"type": state})
}
