package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/realtime"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// CommentController manages replies under posts of any kind.
type CommentController struct {
	store store.Store
	hub   *realtime.Hub
}

func NewCommentController(st store.Store, hub *realtime.Hub) *CommentController {
	return &CommentController{store: st, hub: hub}
}

type commentView struct {
	models.Comment
	Author authorView `json:"author"`
}

type commentRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

// List returns the comments of a post, oldest first.
func (cc *CommentController) List(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c := ctx.Request.Context()
		post, err := cc.store.GetPost(c, kind, ctx.Param("id"))
		if err != nil {
			storeError(ctx, err, 2, "load post")
			return
		}
		comments, err := cc.store.ListComments(c, post.ID)
		if err != nil {
			storeError(ctx, err, 40, "list comments")
			return
		}

		ids := make([]string, 0, len(comments))
		for _, cm := range comments {
			ids = append(ids, cm.AuthorID)
		}
		authors := resolveAuthors(c, cc.store, ids)
		items := make([]commentView, 0, len(comments))
		for _, cm := range comments {
			items = append(items, commentView{Comment: cm, Author: authorOf(authors, cm.AuthorID)})
		}
		utils.Success(ctx, gin.H{"items": items})
	}
}

// Create allows authenticated users to comment on posts.
func (cc *CommentController) Create(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		su, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}

		var req commentRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
			return
		}
		body := utils.StripTags(req.Body)
		if body == "" {
			utils.Error(ctx, http.StatusBadRequest, 40041, "content cannot be empty")
			return
		}

		c := ctx.Request.Context()
		post, err := cc.store.GetPost(c, kind, ctx.Param("id"))
		if err != nil {
			storeError(ctx, err, 2, "load post")
			return
		}
		author, err := cc.store.GetUser(c, su.ID)
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "account no longer exists")
			return
		}
		if err != nil {
			storeError(ctx, err, 41, "load author")
			return
		}

		comment := models.Comment{
			PostID:      post.ID,
			Kind:        kind,
			Body:        body,
			AuthorID:    author.ID,
			AuthorEmail: author.Email,
			AuthorName:  author.Name,
		}
		if err := cc.store.CreateComment(c, &comment); err != nil {
			utils.Sugar.Errorw("create comment failed", "post_id", post.ID, "err", err)
			utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create comment")
			return
		}

		cc.hub.Publish(realtime.Event{Type: realtime.CommentCreated, Kind: string(kind), ID: comment.ID, PostID: post.ID})
		utils.Created(ctx, commentView{
			Comment: comment,
			Author:  authorView{ID: author.ID, Name: author.Name, Email: utils.MaskEmail(author.Email)},
		})
	}
}

// Update lets the author edit their own comment.
func (cc *CommentController) Update(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	body := utils.StripTags(req.Body)
	if body == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "content cannot be empty")
		return
	}

	c := ctx.Request.Context()
	comment, err := cc.store.GetComment(c, ctx.Param("commentId"))
	if err != nil {
		storeError(ctx, err, 20, "load comment")
		return
	}
	if comment.AuthorID != su.ID {
		utils.Error(ctx, http.StatusForbidden, 40320, "you can only edit your own comment")
		return
	}

	comment.Body = body
	if err := cc.store.UpdateComment(c, comment); err != nil {
		storeError(ctx, err, 42, "update comment")
		return
	}

	cc.hub.Publish(realtime.Event{Type: realtime.CommentUpdated, Kind: string(comment.Kind), ID: comment.ID, PostID: comment.PostID})
	authors := resolveAuthors(c, cc.store, []string{comment.AuthorID})
	utils.Success(ctx, commentView{Comment: *comment, Author: authorOf(authors, comment.AuthorID)})
}

// Delete allows the comment owner or admin to delete a comment
func (cc *CommentController) Delete(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	c := ctx.Request.Context()
	comment, err := cc.store.GetComment(c, ctx.Param("commentId"))
	if err != nil {
		storeError(ctx, err, 20, "load comment")
		return
	}
	if comment.AuthorID != su.ID && !isAdmin(su) {
		utils.Error(ctx, http.StatusForbidden, 40321, "you can only delete your own comment")
		return
	}
	if err := cc.store.DeleteComment(c, comment.ID); err != nil {
		storeError(ctx, err, 43, "delete comment")
		return
	}

	cc.hub.Publish(realtime.Event{Type: realtime.CommentDeleted, Kind: string(comment.Kind), ID: comment.ID, PostID: comment.PostID})
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
