package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/utils"
)

// ConfigController serves dynamic, environment-driven UI configuration.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetSite returns the association name, footer contact, notice bar and the
// content sections the front end should show.
func (c *ConfigController) GetSite(ctx *gin.Context) {
	cfg := config.Get()
	sections := make([]gin.H, 0, len(models.Kinds))
	for _, kind := range models.Kinds {
		sections = append(sections, gin.H{
			"kind":       kind,
			"path":       kind.Path(),
			"admin_only": kind.AdminOnly(),
		})
	}
	utils.Success(ctx, gin.H{
		"name":    cfg.SiteName,
		"tagline": cfg.SiteTagline,
		"footer": gin.H{
			"address": cfg.FooterAddress,
			"phone":   cfg.FooterPhone,
			"email":   cfg.FooterEmail,
		},
		"notice": gin.H{
			"title": cfg.NoticeTitle,
			"html":  utils.Sanitize(cfg.NoticeHTML),
		},
		"sections":         sections,
		"captcha_required": cfg.RegisterCaptchaEnabled,
	})
}
