package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// ContactController stores contact-form submissions and notifies the office.
type ContactController struct {
	contacts store.ContactStore
	mailer   utils.Mailer
}

func NewContactController(contacts store.ContactStore, mailer utils.Mailer) *ContactController {
	return &ContactController{contacts: contacts, mailer: mailer}
}

// Submit records an anonymous submission as pending. The notification mail is
// best-effort: the record already exists when it fails.
func (cc *ContactController) Submit(ctx *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required,max=64"`
		Email   string `json:"email" binding:"required,email,max=255"`
		Phone   string `json:"phone" binding:"omitempty,max=32"`
		Subject string `json:"subject" binding:"required,max=200"`
		Body    string `json:"body" binding:"required,max=5000"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	contact := models.Contact{
		Name:    utils.StripTags(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   utils.StripTags(req.Phone),
		Subject: utils.StripTags(req.Subject),
		Body:    utils.StripTags(req.Body),
		Status:  models.ContactPending,
		IP:      ctx.ClientIP(),
	}
	if contact.Name == "" || contact.Subject == "" || contact.Body == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "name, subject and message cannot be empty")
		return
	}

	if err := cc.contacts.CreateContact(ctx.Request.Context(), &contact); err != nil {
		utils.Sugar.Errorw("create contact failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, utils.Message(""))
		return
	}

	cc.notify(ctx.Request.Context(), &contact)
	utils.Created(ctx, gin.H{"id": contact.ID, "status": contact.Status})
}

func (cc *ContactController) notify(parent context.Context, contact *models.Contact) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 10*time.Second)
	defer cancel()

	var body strings.Builder
	fmt.Fprintf(&body, "Name: %s\nEmail: %s\n", contact.Name, contact.Email)
	if contact.Phone != "" {
		fmt.Fprintf(&body, "Phone: %s\n", contact.Phone)
	}
	fmt.Fprintf(&body, "Received: %s\n\n%s\n", contact.CreatedAt.Format(time.RFC1123), contact.Body)

	err := cc.mailer.Send(ctx, utils.MailMessage{
		To:          config.Get().ContactRecipient,
		Subject:     "[Contact] " + contact.Subject,
		Body:        body.String(),
		ReplyTo:     contact.Email,
		ReplyToName: contact.Name,
	})
	if err != nil {
		utils.Sugar.Warnw("contact notification failed", "contact_id", contact.ID, "err", err)
	}
}

// List returns submissions newest first (admin).
func (cc *ContactController) List(ctx *gin.Context) {
	page, pageSize := utils.ParsePagination(ctx)
	items, total, err := cc.contacts.ListContacts(ctx.Request.Context(), page, pageSize)
	if err != nil {
		utils.Sugar.Errorw("list contacts failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list contacts")
		return
	}
	utils.Success(ctx, utils.NewPageResult(items, page, pageSize, total))
}
