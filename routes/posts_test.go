package routes

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/realtime"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

func TestPostDetail_CountsEveryView(t *testing.T) {
	e := newTestEnv(t)
	author, _ := e.seedUser(t, "Author", "views@school.example.org", models.RoleUser)
	post := e.seedPost(t, models.KindBoard, "Lesson swap", author.ID)

	for want := int64(1); want <= 3; want++ {
		w := e.do(t, http.MethodGet, "/api/v1/boards/"+post.ID, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got postResponse
		decode(t, w, &got)
		assert.Equal(t, want, got.Views)
		assert.Equal(t, "Author", got.Author.Name)
	}

	// listing does not count as a view, and cached pages carry no stale count
	w := e.do(t, http.MethodGet, "/api/v1/boards", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Items []map[string]interface{} `json:"items"`
	}
	decode(t, w, &listed)
	require.Len(t, listed.Items, 1)
	assert.NotContains(t, listed.Items[0], "views")
	assert.Equal(t, "Lesson swap", listed.Items[0]["title"])
	stored, err := e.store.GetPost(context.Background(), models.KindBoard, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stored.Views)

	// the kind is part of the address
	w = e.do(t, http.MethodGet, "/api/v1/notices/"+post.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostDetail_MissingAuthorRendersPlaceholder(t *testing.T) {
	e := newTestEnv(t)
	post := e.seedPost(t, models.KindJob, "Orphaned job", "deleted-user")

	w := e.do(t, http.MethodGet, "/api/v1/jobs/"+post.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got postResponse
	decode(t, w, &got)
	assert.Equal(t, models.UnknownAuthorName, got.Author.Name)
}

func TestPostList_PaginatesAndSearches(t *testing.T) {
	e := newTestEnv(t)
	author, _ := e.seedUser(t, "Lister", "lister@school.example.org", models.RoleAdmin)
	for _, title := range []string{"Math workshop", "Science fair", "Math olympiad"} {
		e.seedPost(t, models.KindNotice, title, author.ID)
		time.Sleep(2 * time.Millisecond)
	}

	w := e.do(t, http.MethodGet, "/api/v1/notices?page=1&page_size=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []postResponse   `json:"items"`
		Pagination utils.Pagination `json:"pagination"`
	}
	decode(t, w, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Math olympiad", page.Items[0].Title)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	w = e.do(t, http.MethodGet, "/api/v1/notices?q=math", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Len(t, page.Items, 2)
}

func TestCreatePost_AdminOnlyKinds(t *testing.T) {
	e := newTestEnv(t)
	_, adminToken := e.seedUser(t, "Admin", "kinds-admin@school.example.org", models.RoleAdmin)
	_, userToken := e.seedUser(t, "Member", "kinds-user@school.example.org", models.RoleUser)

	for _, path := range []string{"notices", "jobs", "materials", "galleries"} {
		w := e.do(t, http.MethodPost, "/api/v1/"+path, gin.H{"title": "not allowed"}, userToken)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w := e.do(t, http.MethodPost, "/api/v1/notices", gin.H{
		"title":       "Annual meeting",
		"body":        `<p>Hall B</p><script>alert(1)</script>`,
		"body_format": "html",
		"pinned":      true,
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var notice postResponse
	decode(t, w, &notice)
	assert.True(t, notice.Pinned)
	assert.Contains(t, notice.Body, "<p>Hall B</p>")
	assert.NotContains(t, notice.Body, "script")
	assert.Equal(t, "Admin", notice.Author.Name)

	// members may post on the board but cannot pin
	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{"title": "Hello", "pinned": true}, userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var board postResponse
	decode(t, w, &board)
	assert.False(t, board.Pinned)

	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{"title": "Anonymous"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// signUpload asks for a presigned upload and returns the issued key.
func (e *testEnv) signUpload(t *testing.T, filename, token string) string {
	t.Helper()
	e.objects.On("UploadURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://bucket.example/put", nil).Once()
	w := e.do(t, http.MethodPost, "/api/v1/uploads/sign", gin.H{"filename": filename, "content_type": "application/pdf"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var signed struct {
		Key string `json:"key"`
	}
	decode(t, w, &signed)
	require.NotEmpty(t, signed.Key)
	return signed.Key
}

func TestCreatePost_RejectsForeignAttachmentKeys(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Member", "keys@school.example.org", models.RoleUser)
	_, otherToken := e.seedUser(t, "Other", "keys-other@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Sneaky",
		"attachments": []gin.H{{"name": "x", "key": "../secrets/key.pem"}},
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a well-formed key nobody issued to this member
	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Guessed",
		"attachments": []gin.H{{"name": "plan.pdf", "key": "uploads/20240301/abc.pdf"}},
	}, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	key := e.signUpload(t, "plan.pdf", token)
	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Someone else's upload",
		"attachments": []gin.H{{"name": "plan.pdf", "key": key}},
	}, otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Signed upload",
		"attachments": []gin.H{{"name": "plan.pdf", "key": key, "url": "https://evil.example"}},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got postResponse
	decode(t, w, &got)
	require.Len(t, got.Attachments, 1)
	assert.True(t, strings.HasSuffix(got.Attachments[0].URL, "/api/v1/files/"+key))

	// once attached, the key cannot be reused on a second post
	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Again",
		"attachments": []gin.H{{"name": "plan.pdf", "key": key}},
	}, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// but it stays valid on its own post
	w = e.do(t, http.MethodPut, "/api/v1/boards/"+got.ID, gin.H{
		"attachments": []gin.H{{"name": "renamed.pdf", "key": key}},
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "renamed.pdf", got.Attachments[0].Name)
}

func TestUploads_BatchThenAttach(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Member", "batch@school.example.org", models.RoleUser)
	_, otherToken := e.seedUser(t, "Other", "batch-other@school.example.org", models.RoleUser)
	e.objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	w := e.doMultipart(t, "/api/v1/uploads", nil, map[string][]byte{"notes.txt": []byte("hello")}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var uploaded struct {
		Items []models.Attachment `json:"items"`
	}
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Items, 1)

	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{"title": "Not mine", "attachments": uploaded.Items}, otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/boards", gin.H{"title": "Notes", "attachments": uploaded.Items}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got postResponse
	decode(t, w, &got)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, uploaded.Items[0].Key, got.Attachments[0].Key)
}

func TestAttachments_OtherPostsFilesSurvive(t *testing.T) {
	e := newTestEnv(t)
	admin, _ := e.seedUser(t, "Admin", "files-admin@school.example.org", models.RoleAdmin)
	member, memberToken := e.seedUser(t, "Member", "files-member@school.example.org", models.RoleUser)
	e.objects.On("Delete", mock.Anything, mock.Anything).Return(nil)

	c := context.Background()
	shared := "uploads/20240301/schedule.pdf"
	notice := &models.Post{
		Kind:        models.KindNotice,
		Title:       "Exam schedule",
		AuthorID:    admin.ID,
		Attachments: models.Attachments{{Name: "schedule.pdf", Key: shared}},
	}
	require.NoError(t, e.store.CreatePost(c, notice))

	w := e.do(t, http.MethodPost, "/api/v1/boards", gin.H{
		"title":       "Borrowed",
		"attachments": []gin.H{{"name": "schedule.pdf", "key": shared}},
	}, memberToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	own := e.seedPost(t, models.KindBoard, "Mine", member.ID)
	w = e.do(t, http.MethodPut, "/api/v1/boards/"+own.ID, gin.H{
		"attachments": []gin.H{{"name": "schedule.pdf", "key": shared}},
	}, memberToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// a post stored with a key another post also lists never removes the object
	legacy := &models.Post{
		Kind:        models.KindBoard,
		Title:       "Older copy",
		AuthorID:    member.ID,
		Attachments: models.Attachments{{Name: "schedule.pdf", Key: shared}},
	}
	require.NoError(t, e.store.CreatePost(c, legacy))
	w = e.do(t, http.MethodDelete, "/api/v1/boards/"+legacy.ID, nil, memberToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	e.objects.AssertNotCalled(t, "Delete", mock.Anything, shared)

	stored, err := e.store.GetPost(c, models.KindNotice, notice.ID)
	require.NoError(t, err)
	assert.Equal(t, shared, stored.Attachments[0].Key)
}

func TestCreateGallery_MultipartSetsCover(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Admin", "gallery@school.example.org", models.RoleAdmin)
	e.objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "image/png").Return(nil).Once()

	w := e.doMultipart(t, "/api/v1/galleries",
		map[string]string{"title": "Sports day"},
		map[string][]byte{"race.png": []byte("\x89PNG fake")},
		token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got postResponse
	decode(t, w, &got)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "race.png", got.Attachments[0].Name)
	assert.Equal(t, "image/png", got.Attachments[0].ContentType)
	assert.NotEmpty(t, got.ImageURL)
	assert.Equal(t, got.Attachments[0].URL, got.ImageURL)
	e.objects.AssertExpectations(t)

	// a gallery item needs at least one picture
	w = e.do(t, http.MethodPost, "/api/v1/galleries", gin.H{"title": "Empty"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePost_FailedUploadCreatesNothing(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Admin", "uploadfail@school.example.org", models.RoleAdmin)

	var landed string
	e.objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "image/png").
		Run(func(args mock.Arguments) { landed = args.String(1) }).
		Return(nil).Once()
	e.objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "application/pdf").
		Return(errors.New("bucket unavailable")).Once()
	e.objects.On("Delete", mock.Anything, mock.Anything).Return(nil)

	w := e.doMultipart(t, "/api/v1/materials",
		map[string]string{"title": "Worksheets"},
		map[string][]byte{
			"cover.png": []byte("png"),
			"sheet.pdf": []byte("%PDF-1.4"),
		},
		token)
	assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

	_, total, err := e.store.ListPosts(context.Background(), store.PostQuery{Kind: models.KindMaterial, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	// the file that did land is cleaned up
	require.NotEmpty(t, landed)
	e.objects.AssertCalled(t, "Delete", mock.Anything, landed)
}

func TestCreatePost_FileTooLarge(t *testing.T) {
	e := newTestEnv(t, func(c *config.AppConfig) { c.UploadMaxMB = 1 })
	_, token := e.seedUser(t, "Admin", "toolarge@school.example.org", models.RoleAdmin)

	w := e.doMultipart(t, "/api/v1/materials",
		map[string]string{"title": "Huge"},
		map[string][]byte{"video.pdf": make([]byte, 1<<20+1)},
		token)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	e.objects.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePost_AuthorOrAdmin(t *testing.T) {
	e := newTestEnv(t)
	author, authorToken := e.seedUser(t, "Author", "upd-author@school.example.org", models.RoleUser)
	_, otherToken := e.seedUser(t, "Other", "upd-other@school.example.org", models.RoleUser)
	_, adminToken := e.seedUser(t, "Admin", "upd-admin@school.example.org", models.RoleAdmin)
	post := e.seedPost(t, models.KindBoard, "Draft", author.ID)

	w := e.do(t, http.MethodPut, "/api/v1/boards/"+post.ID, gin.H{"title": "Hijacked"}, otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPut, "/api/v1/boards/"+post.ID, gin.H{"title": "Final"}, authorToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got postResponse
	decode(t, w, &got)
	assert.Equal(t, "Final", got.Title)

	w = e.do(t, http.MethodPut, "/api/v1/boards/"+post.ID, gin.H{"pinned": true}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.True(t, got.Pinned)
	assert.Equal(t, "Author", got.Author.Name)
}

func TestDeletePost_AuthorOrAdmin(t *testing.T) {
	e := newTestEnv(t)
	author, authorToken := e.seedUser(t, "Author", "del-author@school.example.org", models.RoleUser)
	_, otherToken := e.seedUser(t, "Other", "del-other@school.example.org", models.RoleUser)
	_, adminToken := e.seedUser(t, "Admin", "del-admin@school.example.org", models.RoleAdmin)

	c := context.Background()
	post := &models.Post{
		Kind:        models.KindBoard,
		Title:       "With file",
		AuthorID:    author.ID,
		Attachments: models.Attachments{{Name: "a.pdf", Key: "uploads/20240301/a.pdf"}},
	}
	require.NoError(t, e.store.CreatePost(c, post))
	require.NoError(t, e.store.CreateComment(c, &models.Comment{PostID: post.ID, Kind: models.KindBoard, Body: "nice", AuthorID: author.ID}))
	e.objects.On("Delete", mock.Anything, "uploads/20240301/a.pdf").Return(nil).Once()

	w := e.do(t, http.MethodDelete, "/api/v1/boards/"+post.ID, nil, otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/boards/"+post.ID, nil, authorToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := e.store.GetPost(c, models.KindBoard, post.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	comments, err := e.store.ListComments(c, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	e.objects.AssertExpectations(t)

	// admins may remove anyone's post
	other := e.seedPost(t, models.KindBoard, "Spam", author.ID)
	w = e.do(t, http.MethodDelete, "/api/v1/boards/"+other.ID, nil, adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/boards/"+other.ID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComments_Permissions(t *testing.T) {
	e := newTestEnv(t)
	author, authorToken := e.seedUser(t, "Post Author", "cm-author@school.example.org", models.RoleUser)
	_, commenterToken := e.seedUser(t, "Commenter", "cm-commenter@school.example.org", models.RoleUser)
	_, adminToken := e.seedUser(t, "Admin", "cm-admin@school.example.org", models.RoleAdmin)
	post := e.seedPost(t, models.KindNotice, "Exam schedule", author.ID)

	w := e.do(t, http.MethodPost, "/api/v1/notices/"+post.ID+"/comments", gin.H{"body": "Thanks <b>a lot</b>"}, commenterToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comment struct {
		ID   string `json:"id"`
		Body string `json:"body"`
	}
	decode(t, w, &comment)
	assert.Equal(t, "Thanks a lot", comment.Body)

	w = e.do(t, http.MethodPost, "/api/v1/notices/missing/comments", gin.H{"body": "hello"}, commenterToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPut, "/api/v1/comments/"+comment.ID, gin.H{"body": "edited"}, authorToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodPut, "/api/v1/comments/"+comment.ID, gin.H{"body": "Thanks again"}, commenterToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/notices/"+post.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail postResponse
	decode(t, w, &detail)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Thanks again", detail.Comments[0].Body)
	assert.Equal(t, "Commenter", detail.Comments[0].Author.Name)

	w = e.do(t, http.MethodDelete, "/api/v1/comments/"+comment.ID, nil, authorToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodDelete, "/api/v1/comments/"+comment.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/notices/"+post.ID+"/comments", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []json.RawMessage `json:"items"`
	}
	decode(t, w, &list)
	assert.Empty(t, list.Items)
}

func TestContact_StoresPendingAndNotifies(t *testing.T) {
	e := newTestEnv(t)
	e.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m utils.MailMessage) bool {
		return m.To == "office@teachers.example.org" &&
			m.ReplyTo == "parent@example.com" &&
			strings.Contains(m.Subject, "Membership")
	})).Return(nil).Once()

	w := e.do(t, http.MethodPost, "/api/v1/contact", gin.H{
		"name":    "A Parent",
		"email":   "parent@example.com",
		"subject": "Membership",
		"body":    "How do I join?",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &created)
	assert.Equal(t, models.ContactPending, created.Status)
	e.mailer.AssertExpectations(t)

	// a mail outage does not lose the submission
	e.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	w = e.do(t, http.MethodPost, "/api/v1/contact", gin.H{
		"name":    "Another",
		"email":   "another@example.com",
		"subject": "Question",
		"body":    "Hello",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	contacts, total, err := e.store.ListContacts(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, c := range contacts {
		assert.Equal(t, models.ContactPending, c.Status)
	}

	w = e.do(t, http.MethodPost, "/api/v1/contact", gin.H{"name": "x", "email": "not-an-email", "subject": "s", "body": "b"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploads_SignAndDownload(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Uploader", "sign@school.example.org", models.RoleUser)
	e.objects.On("UploadURL", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "uploads/") && strings.HasSuffix(k, ".pdf")
	}), "application/pdf", mock.Anything).Return("https://bucket.example/put?sig=1", nil).Once()

	w := e.do(t, http.MethodPost, "/api/v1/uploads/sign", gin.H{"filename": "Plan.PDF", "content_type": "application/pdf"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var signed struct {
		Key       string `json:"key"`
		Method    string `json:"method"`
		UploadURL string `json:"upload_url"`
	}
	decode(t, w, &signed)
	assert.Equal(t, http.MethodPut, signed.Method)
	assert.Equal(t, "https://bucket.example/put?sig=1", signed.UploadURL)

	e.objects.On("DownloadURL", mock.Anything, signed.Key, mock.Anything).Return("https://bucket.example/get?sig=2", nil).Once()
	w = e.do(t, http.MethodGet, "/api/v1/files/"+signed.Key, nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bucket.example/get?sig=2", w.Header().Get("Location"))

	w = e.do(t, http.MethodGet, "/api/v1/files/private/key.pem", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	e.objects.AssertExpectations(t)
}

func TestStatsAndSiteConfig(t *testing.T) {
	e := newTestEnv(t)
	author, _ := e.seedUser(t, "Stats", "stats@school.example.org", models.RoleUser)
	e.seedPost(t, models.KindBoard, "One", author.ID)
	e.seedPost(t, models.KindBoard, "Two", author.ID)

	w := e.do(t, http.MethodGet, "/api/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		UserCount  int64            `json:"user_count"`
		PostCounts map[string]int64 `json:"post_counts"`
	}
	decode(t, w, &stats)
	assert.EqualValues(t, 1, stats.UserCount)
	assert.EqualValues(t, 2, stats.PostCounts["board"])

	w = e.do(t, http.MethodGet, "/api/v1/config/site", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var site struct {
		Name     string `json:"name"`
		Sections []struct {
			Kind      string `json:"kind"`
			AdminOnly bool   `json:"admin_only"`
		} `json:"sections"`
	}
	decode(t, w, &site)
	assert.Equal(t, "Riverside Teachers' Association", site.Name)
	assert.Len(t, site.Sections, len(models.Kinds))
}

func TestPages_RenderSiteContent(t *testing.T) {
	e := newTestEnv(t, func(c *config.AppConfig) {
		c.AboutHeading = "What we do"
		c.AboutActivities = []string{"Mentoring new teachers", "Curriculum review"}
		c.NoticeHTML = `<strong>Dues are due</strong><script>x()</script>`
	})
	author, _ := e.seedUser(t, "Pages", "pages@school.example.org", models.RoleAdmin)
	e.seedPost(t, models.KindNotice, "Spring conference", author.ID)

	w := e.do(t, http.MethodGet, "/about", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "What we do")
	assert.Contains(t, body, "Mentoring new teachers")
	assert.Contains(t, body, "Curriculum review")
	assert.Contains(t, body, html.EscapeString("Riverside Teachers' Association"))

	w = e.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.Contains(t, body, "Spring conference")
	assert.Contains(t, body, "<strong>Dues are due</strong>")
	assert.NotContains(t, body, "x()")
}

func TestWebsocket_ReceivesPostEvents(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Live", "ws@school.example.org", models.RoleUser)

	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws/boards", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.hub.Subscribers(string(models.KindBoard)) > 0 }, time.Second, 10*time.Millisecond)

	w := e.do(t, http.MethodPost, "/api/v1/boards", gin.H{"title": "Live update"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created postResponse
	decode(t, w, &created)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.PostCreated, ev.Type)
	assert.Equal(t, created.ID, ev.ID)

	w = e.do(t, http.MethodGet, "/api/v1/ws/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
