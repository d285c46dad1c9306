package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// StatsController provides site statistics such as member and post counts.
type StatsController struct {
	store store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(st store.Store) *StatsController {
	return &StatsController{store: st}
}

type siteStats struct {
	UserCount    int64            `json:"user_count"`
	PostCounts   map[string]int64 `json:"post_counts"`
	CommentCount int64            `json:"comment_count"`
}

// GetStats returns aggregate statistics for the site.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var stats siteStats
	if utils.CacheGetJSON(utils.CacheStatsKey, &stats) {
		utils.Success(ctx, stats)
		return
	}

	c := ctx.Request.Context()
	// Fallback to 0 instead of failing the whole endpoint
	if n, err := s.store.CountUsers(c); err == nil {
		stats.UserCount = n
	}
	stats.PostCounts = make(map[string]int64, len(models.Kinds))
	for _, kind := range models.Kinds {
		n, err := s.store.CountPosts(c, kind)
		if err != nil {
			utils.Sugar.Warnw("count posts failed", "kind", kind, "err", err)
		}
		stats.PostCounts[string(kind)] = n
	}
	if n, err := s.store.CountComments(c); err == nil {
		stats.CommentCount = n
	}

	utils.CacheSetJSON(utils.CacheStatsKey, stats, time.Minute)
	utils.Success(ctx, stats)
}
