package controllers

import (
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/objstore"
	"github.com/cppla/eduboard/utils"
)

const (
	maxParallelUploads = 4
	maxFilesPerRequest = 20
	signedURLTTL       = 15 * time.Minute
)

var (
	errFileTooLarge = errors.New("file too large")
	errTooManyFiles = errors.New("too many files")
)

// UploadController stores attachments and hands out presigned links.
type UploadController struct {
	objects objstore.Interface
}

func NewUploadController(objects objstore.Interface) *UploadController {
	return &UploadController{objects: objects}
}

// Upload stores every file of a multipart batch and returns the attachments.
// Only the uploader may attach them to a post afterwards.
func (u *UploadController) Upload(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	files := formFiles(ctx)
	if len(files) == 0 {
		if _, header, err := ctx.Request.FormFile("file"); err == nil {
			files = []*multipart.FileHeader{header}
		}
	}
	if len(files) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}

	attachments, ok := uploadOrFail(ctx, u.objects, files)
	if !ok {
		return
	}
	for _, att := range attachments {
		utils.ClaimUpload(att.Key, su.ID)
	}
	utils.Created(ctx, gin.H{"items": attachments})
}

// Sign issues a time-boxed presigned PUT URL so the browser can upload directly.
func (u *UploadController) Sign(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Filename    string `json:"filename" binding:"required,max=255"`
		ContentType string `json:"content_type" binding:"required,max=128"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "filename and content_type are required")
		return
	}

	key := objstore.NewKey(req.Filename, time.Now())
	url, err := u.objects.UploadURL(ctx.Request.Context(), key, req.ContentType, signedURLTTL)
	if err != nil {
		utils.Sugar.Errorw("presign upload failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50230, "failed to sign upload")
		return
	}
	utils.ClaimUpload(key, su.ID)

	utils.Success(ctx, gin.H{
		"key":        key,
		"method":     http.MethodPut,
		"upload_url": url,
		"url":        fileURL(key),
		"expires_in": int(signedURLTTL.Seconds()),
	})
}

// Download redirects to a short-lived presigned GET URL.
func (u *UploadController) Download(ctx *gin.Context) {
	key := strings.TrimPrefix(ctx.Param("key"), "/")
	if !objstore.ValidKey(key) {
		utils.Error(ctx, http.StatusNotFound, 40430, "file not found")
		return
	}
	url, err := u.objects.DownloadURL(ctx.Request.Context(), key, signedURLTTL)
	if err != nil {
		utils.Sugar.Errorw("presign download failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50231, "failed to sign download")
		return
	}
	ctx.Redirect(http.StatusFound, url)
}

// uploadOrFail uploads files and answers the request itself when that fails.
func uploadOrFail(ctx *gin.Context, objects objstore.Interface, files []*multipart.FileHeader) ([]models.Attachment, bool) {
	if len(files) == 0 {
		return nil, true
	}
	attachments, err := uploadFiles(ctx.Request.Context(), objects, files)
	switch {
	case err == nil:
		return attachments, true
	case errors.Is(err, errFileTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file exceeds the upload size limit")
	case errors.Is(err, errTooManyFiles):
		utils.Error(ctx, http.StatusBadRequest, 40032, "too many files")
	default:
		utils.Sugar.Errorw("upload failed", "files", len(files), "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50232, "upload failed")
	}
	return nil, false
}

// uploadFiles stores all files concurrently and waits for every one of them.
// On the first failure the batch is aborted and whatever already landed is
// removed, so callers either get every attachment or none.
func uploadFiles(ctx context.Context, objects objstore.Interface, files []*multipart.FileHeader) ([]models.Attachment, error) {
	if len(files) > maxFilesPerRequest {
		return nil, errTooManyFiles
	}
	limit := int64(config.Get().UploadMaxMB) << 20
	for _, fh := range files {
		if fh.Size > limit {
			return nil, errors.Wrap(errFileTooLarge, fh.Filename)
		}
	}

	now := time.Now()
	attachments := make([]models.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, fh := range files {
		g.Go(func() error {
			src, err := fh.Open()
			if err != nil {
				return errors.Wrapf(err, "open %s", fh.Filename)
			}
			defer src.Close()

			key := objstore.NewKey(fh.Filename, now)
			ct := contentTypeOf(fh)
			if err := objects.Put(gctx, key, src, fh.Size, ct); err != nil {
				return errors.Wrapf(err, "put %s", fh.Filename)
			}
			attachments[i] = models.Attachment{
				Name:        utils.StripTags(filepath.Base(fh.Filename)),
				Key:         key,
				URL:         fileURL(key),
				ContentType: ct,
				Size:        fh.Size,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		removeObjects(objects, models.Attachments(attachments).Keys())
		return nil, err
	}
	return attachments, nil
}

func contentTypeOf(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
