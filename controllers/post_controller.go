package controllers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/objstore"
	"github.com/cppla/eduboard/realtime"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// PostController manages CRUD operations for every content kind.
type PostController struct {
	store   store.Store
	objects objstore.Interface
	hub     *realtime.Hub
}

// NewPostController creates a new PostController instance.
func NewPostController(st store.Store, objects objstore.Interface, hub *realtime.Hub) *PostController {
	return &PostController{store: st, objects: objects, hub: hub}
}

type postView struct {
	models.Post
	Author   authorView    `json:"author"`
	Comments []commentView `json:"comments,omitempty"`
}

// postListItem hides the view counter. List pages are cached for an hour
// while views move on every detail load, so lists never show a count.
type postListItem struct {
	postView
	Views *int64 `json:"views,omitempty"`
}

// postRequest is bound from JSON or from a multipart form with files[].
type postRequest struct {
	Title       string              `json:"title" form:"title" binding:"required,max=255"`
	Body        string              `json:"body" form:"body" binding:"max=100000"`
	BodyFormat  string              `json:"body_format" form:"body_format" binding:"omitempty,oneof=plain html"`
	Category    string              `json:"category" form:"category" binding:"max=32"`
	Pinned      bool                `json:"pinned" form:"pinned"`
	Attachments []models.Attachment `json:"attachments" form:"-"`
}

type postUpdateRequest struct {
	Title       *string              `json:"title" form:"title" binding:"omitempty,max=255"`
	Body        *string              `json:"body" form:"body" binding:"omitempty,max=100000"`
	BodyFormat  *string              `json:"body_format" form:"body_format" binding:"omitempty,oneof=plain html"`
	Category    *string              `json:"category" form:"category" binding:"omitempty,max=32"`
	Pinned      *bool                `json:"pinned" form:"pinned"`
	Attachments *[]models.Attachment `json:"attachments" form:"-"`
}

// List returns one page of posts of kind, pinned first then newest.
func (p *PostController) List(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		page, pageSize := utils.ParsePagination(ctx)
		search := strings.TrimSpace(ctx.Query("q"))
		authorID := strings.TrimSpace(ctx.Query("author_id"))

		// Cache plain list pages only to avoid cache key explosion
		cacheable := search == "" && authorID == ""
		cacheKey := utils.PostListCacheKey(string(kind), page, pageSize)
		if cacheable {
			var cached utils.PageResult
			if utils.CacheGetJSON(cacheKey, &cached) {
				utils.Success(ctx, cached)
				return
			}
		}

		c := ctx.Request.Context()
		posts, total, err := p.store.ListPosts(c, store.PostQuery{
			Kind:     kind,
			Search:   search,
			AuthorID: authorID,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			utils.Sugar.Errorw("list posts failed", "kind", kind, "err", err)
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list posts")
			return
		}

		ids := make([]string, 0, len(posts))
		for _, post := range posts {
			ids = append(ids, post.AuthorID)
		}
		authors := resolveAuthors(c, p.store, ids)
		items := make([]postListItem, 0, len(posts))
		for _, post := range posts {
			items = append(items, postListItem{postView: postView{Post: post, Author: authorOf(authors, post.AuthorID)}})
		}

		result := utils.NewPageResult(items, page, pageSize, total)
		if cacheable {
			utils.CacheSetJSON(cacheKey, result, time.Hour)
		}
		utils.Success(ctx, result)
	}
}

// Get returns a single post with its comments. Every call counts one view.
func (p *PostController) Get(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.Param("id")
		c := ctx.Request.Context()

		if err := p.store.IncrementViews(c, kind, id); err != nil {
			storeError(ctx, err, 1, "increment views")
			return
		}
		post, err := p.store.GetPost(c, kind, id)
		if err != nil {
			storeError(ctx, err, 1, "load post")
			return
		}

		comments, err := p.store.ListComments(c, post.ID)
		if err != nil {
			// the post itself is still worth showing
			utils.Sugar.Warnw("load comments failed", "post_id", post.ID, "err", err)
			comments = nil
		}

		ids := []string{post.AuthorID}
		for _, cm := range comments {
			ids = append(ids, cm.AuthorID)
		}
		authors := resolveAuthors(c, p.store, ids)

		view := postView{Post: *post, Author: authorOf(authors, post.AuthorID), Comments: []commentView{}}
		for _, cm := range comments {
			view.Comments = append(view.Comments, commentView{Comment: cm, Author: authorOf(authors, cm.AuthorID)})
		}
		utils.Success(ctx, view)
	}
}

// Create stores a new post. Files sent as multipart are uploaded first; if any
// upload fails nothing is created.
func (p *PostController) Create(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		su, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}
		if kind.AdminOnly() && !isAdmin(su) {
			utils.Error(ctx, http.StatusForbidden, 40310, "only administrators can publish here")
			return
		}

		var req postRequest
		if err := ctx.ShouldBind(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
			return
		}
		title := utils.StripTags(req.Title)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
			return
		}
		attachments, ok := checkAttachments(ctx, su.ID, req.Attachments, nil)
		if !ok {
			return
		}
		files := formFiles(ctx)
		if kind == models.KindGallery && len(attachments)+len(files) == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40023, "gallery items need an image")
			return
		}

		c := ctx.Request.Context()
		// the author must resolve to a real user at creation time
		author, err := p.store.GetUser(c, su.ID)
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "account no longer exists")
			return
		}
		if err != nil {
			storeError(ctx, err, 20, "load author")
			return
		}

		uploaded, ok := uploadOrFail(ctx, p.objects, files)
		if !ok {
			return
		}

		format := req.BodyFormat
		if format == "" {
			format = models.FormatPlain
		}
		post := models.Post{
			Kind:        kind,
			Title:       title,
			Body:        utils.SanitizeBody(req.Body, format),
			BodyFormat:  format,
			Category:    utils.StripTags(req.Category),
			AuthorID:    author.ID,
			AuthorEmail: author.Email,
			AuthorName:  author.Name,
			Pinned:      req.Pinned && isAdmin(su),
			Attachments: append(attachments, uploaded...),
		}
		if kind == models.KindGallery {
			post.SetCover()
		}

		if err := p.store.CreatePost(c, &post); err != nil {
			removeObjects(p.objects, models.Attachments(uploaded).Keys())
			utils.Sugar.Errorw("create post failed", "kind", kind, "err", err)
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
			return
		}

		utils.ReleaseUploadClaims(models.Attachments(attachments).Keys())
		utils.InvalidatePostLists(string(kind))
		p.hub.Publish(realtime.Event{Type: realtime.PostCreated, Kind: string(kind), ID: post.ID})
		utils.Sugar.Infow("post created", "kind", kind, "post_id", post.ID, "author_id", author.ID)

		utils.Created(ctx, postView{
			Post:   post,
			Author: authorView{ID: author.ID, Name: author.Name, Email: utils.MaskEmail(author.Email)},
		})
	}
}

// Update lets the author or an admin edit a post.
func (p *PostController) Update(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		su, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}

		c := ctx.Request.Context()
		post, err := p.store.GetPost(c, kind, ctx.Param("id"))
		if err != nil {
			storeError(ctx, err, 3, "load post")
			return
		}
		if post.AuthorID != su.ID && !isAdmin(su) {
			utils.Error(ctx, http.StatusForbidden, 40311, "you can only update your own posts")
			return
		}

		var req postUpdateRequest
		if err := ctx.ShouldBind(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
			return
		}

		if req.Title != nil {
			title := utils.StripTags(*req.Title)
			if title == "" {
				utils.Error(ctx, http.StatusBadRequest, 40025, "title cannot be empty")
				return
			}
			post.Title = title
		}
		if req.BodyFormat != nil {
			post.BodyFormat = *req.BodyFormat
		}
		if req.Body != nil {
			post.Body = *req.Body
		}
		if req.Body != nil || req.BodyFormat != nil {
			post.Body = utils.SanitizeBody(post.Body, post.BodyFormat)
		}
		if req.Category != nil {
			post.Category = utils.StripTags(*req.Category)
		}
		if req.Pinned != nil && isAdmin(su) {
			post.Pinned = *req.Pinned
		}

		previous := post.Attachments
		if req.Attachments != nil {
			kept, ok := checkAttachments(ctx, su.ID, *req.Attachments, previous)
			if !ok {
				return
			}
			post.Attachments = kept
		}
		files := formFiles(ctx)
		uploaded, ok := uploadOrFail(ctx, p.objects, files)
		if !ok {
			return
		}
		post.Attachments = append(post.Attachments, uploaded...)
		if kind == models.KindGallery {
			post.SetCover()
			if post.ImageKey == "" {
				removeObjects(p.objects, models.Attachments(uploaded).Keys())
				utils.Error(ctx, http.StatusBadRequest, 40023, "gallery items need an image")
				return
			}
		}

		if err := p.store.UpdatePost(c, post); err != nil {
			removeObjects(p.objects, models.Attachments(uploaded).Keys())
			storeError(ctx, err, 26, "update post")
			return
		}
		utils.ReleaseUploadClaims(post.Attachments.Keys())
		p.releaseObjects(c, post.ID, droppedKeys(previous, post.Attachments))

		utils.InvalidatePostLists(string(kind))
		p.hub.Publish(realtime.Event{Type: realtime.PostUpdated, Kind: string(kind), ID: post.ID})

		authors := resolveAuthors(c, p.store, []string{post.AuthorID})
		utils.Success(ctx, postView{Post: *post, Author: authorOf(authors, post.AuthorID)})
	}
}

// Delete lets the author or an admin remove a post with its comments and files.
func (p *PostController) Delete(kind models.Kind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		su, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}

		c := ctx.Request.Context()
		post, err := p.store.GetPost(c, kind, ctx.Param("id"))
		if err != nil {
			storeError(ctx, err, 4, "load post")
			return
		}
		if post.AuthorID != su.ID && !isAdmin(su) {
			utils.Error(ctx, http.StatusForbidden, 40312, "you can only delete your own posts")
			return
		}

		if err := p.store.DeletePost(c, kind, post.ID); err != nil {
			storeError(ctx, err, 28, "delete post")
			return
		}
		if err := p.store.DeleteCommentsByPost(c, post.ID); err != nil {
			utils.Sugar.Warnw("delete comments of post failed", "post_id", post.ID, "err", err)
		}
		p.releaseObjects(c, post.ID, post.Attachments.Keys())

		utils.InvalidatePostLists(string(kind))
		p.hub.Publish(realtime.Event{Type: realtime.PostDeleted, Kind: string(kind), ID: post.ID})
		utils.Sugar.Infow("post deleted", "kind", kind, "post_id", post.ID, "by", su.ID)

		utils.Success(ctx, gin.H{"message": "post deleted"})
	}
}

// checkAttachments accepts keys already on the post and keys the caller
// uploaded and has not attached yet. URLs are recomputed so clients cannot
// point them elsewhere.
func checkAttachments(ctx *gin.Context, userID string, in []models.Attachment, onPost models.Attachments) ([]models.Attachment, bool) {
	attached := make(map[string]struct{}, len(onPost))
	for _, key := range onPost.Keys() {
		attached[key] = struct{}{}
	}
	out := make([]models.Attachment, 0, len(in))
	for _, att := range in {
		if !objstore.ValidKey(att.Key) {
			utils.Error(ctx, http.StatusBadRequest, 40022, "invalid attachment key")
			return nil, false
		}
		if _, ok := attached[att.Key]; !ok && !utils.OwnsUpload(att.Key, userID) {
			utils.Error(ctx, http.StatusForbidden, 40313, "attachment was not uploaded by you")
			return nil, false
		}
		att.Name = utils.StripTags(att.Name)
		att.URL = fileURL(att.Key)
		out = append(out, att)
	}
	return out, true
}

// releaseObjects deletes the objects of postID that no other post lists.
// Keys whose usage cannot be checked are kept.
func (p *PostController) releaseObjects(ctx context.Context, postID string, keys []string) {
	free := make([]string, 0, len(keys))
	for _, key := range keys {
		inUse, err := p.store.AttachmentInUse(ctx, key, postID)
		if err != nil {
			utils.Sugar.Warnw("check object usage failed, keeping it", "key", key, "err", err)
			continue
		}
		if inUse {
			utils.Sugar.Infow("object still attached elsewhere, keeping it", "key", key, "post_id", postID)
			continue
		}
		free = append(free, key)
	}
	removeObjects(p.objects, free)
}

func formFiles(ctx *gin.Context) []*multipart.FileHeader {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File["files"]
	return append(files, form.File["files[]"]...)
}

func droppedKeys(before, after models.Attachments) []string {
	kept := make(map[string]struct{}, len(after))
	for _, att := range after {
		kept[att.Key] = struct{}{}
	}
	var dropped []string
	for _, key := range before.Keys() {
		if _, ok := kept[key]; !ok {
			dropped = append(dropped, key)
		}
	}
	return dropped
}
