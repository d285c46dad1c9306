package controllers

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

const homeNoticeCount = 5

// PageController renders the public HTML pages.
type PageController struct {
	posts store.PostStore
}

func NewPageController(posts store.PostStore) *PageController {
	return &PageController{posts: posts}
}

type siteInfo struct {
	Name    string
	Tagline string
	Address string
	Phone   string
	Email   string
}

type navSection struct {
	Path  string
	Label string
}

// PageData is shared by every page: title, footer and navigation.
type PageData struct {
	Title    string
	Site     siteInfo
	Sections []navSection
}

func newPageData(title string) PageData {
	cfg := config.Get()
	sections := make([]navSection, 0, len(models.Kinds))
	for _, kind := range models.Kinds {
		label := kind.Path()
		sections = append(sections, navSection{Path: label, Label: strings.ToUpper(label[:1]) + label[1:]})
	}
	return PageData{
		Title: title,
		Site: siteInfo{
			Name:    cfg.SiteName,
			Tagline: cfg.SiteTagline,
			Address: cfg.FooterAddress,
			Phone:   cfg.FooterPhone,
			Email:   cfg.FooterEmail,
		},
		Sections: sections,
	}
}

// Home shows the association banner, the notice bar and the latest notices.
func (p *PageController) Home(ctx *gin.Context) {
	cfg := config.Get()
	notices, _, err := p.posts.ListPosts(ctx.Request.Context(), store.PostQuery{
		Kind:     models.KindNotice,
		Page:     1,
		PageSize: homeNoticeCount,
	})
	if err != nil {
		// render the page without the list
		utils.Sugar.Warnw("home: list notices failed", "err", err)
		notices = nil
	}

	ctx.HTML(http.StatusOK, "home.tmpl", struct {
		PageData
		NoticeTitle string
		NoticeHTML  template.HTML
		Notices     []models.Post
	}{
		PageData:    newPageData("Home"),
		NoticeTitle: cfg.NoticeTitle,
		NoticeHTML:  template.HTML(utils.Sanitize(cfg.NoticeHTML)),
		Notices:     notices,
	})
}

// About lists what the association does.
func (p *PageController) About(ctx *gin.Context) {
	cfg := config.Get()
	ctx.HTML(http.StatusOK, "about.tmpl", struct {
		PageData
		Heading    string
		Activities []string
	}{
		PageData:   newPageData(cfg.AboutHeading),
		Heading:    cfg.AboutHeading,
		Activities: cfg.AboutActivities,
	})
}
