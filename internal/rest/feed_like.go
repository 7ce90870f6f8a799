package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/feed-like/domain"
	"github.com/Guyuepp/feed-like/internal/rest/request"
	"github.com/Guyuepp/feed-like/internal/rest/response"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

// FeedLikeHandler represent the httphandler for likes of feeds
type FeedLikeHandler struct {
	Service domain.LikeUsecase
	Feeds   domain.FeedRepository
}

func NewFeedLikeHandler(svc domain.LikeUsecase, feeds domain.FeedRepository) *FeedLikeHandler {
	return &FeedLikeHandler{
		Service: svc,
		Feeds:   feeds,
	}
}

// Register mounts the like routes on r. r must run an identity middleware that sets user_id.
func (h *FeedLikeHandler) Register(r gin.IRoutes) {
	r.GET("/feeds/:id/like", h.Liked)
	r.POST("/feeds/:id/like", h.Like)
	r.DELETE("/feeds/:id/like", h.Unlike)
	r.GET("/feeds/:id/likes", h.Likes)
}

// Liked reports whether the current user likes the feed
func (h *FeedLikeHandler) Liked(c *gin.Context) {
	feed, actor, ok := h.resolve(c)
	if !ok {
		return
	}

	liked, err := h.Service.Liked(c.Request.Context(), feed, actor)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Liked{Liked: liked})
}

// Like adds a like record if not exists
func (h *FeedLikeHandler) Like(c *gin.Context) {
	feed, actor, ok := h.resolve(c)
	if !ok {
		return
	}

	rel, err := h.Service.Like(c.Request.Context(), feed, actor)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, response.NewLikeRelationFromDomain(&rel))
}

// Unlike removes a like record if exists
func (h *FeedLikeHandler) Unlike(c *gin.Context) {
	feed, actor, ok := h.resolve(c)
	if !ok {
		return
	}

	removed, err := h.Service.Unlike(c.Request.Context(), feed, actor)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Unliked{IsChanged: removed})
}

// Likes lists the users who liked the feed, oldest like first
func (h *FeedLikeHandler) Likes(c *gin.Context) {
	feed, _, ok := h.resolve(c)
	if !ok {
		return
	}

	rels, err := h.Service.Likes(c.Request.Context(), feed)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.NewFeedLikesFromDomain(feed.ID, rels))
}

// resolve loads the feed named by the URI and the user set by the identity middleware.
// It writes the error response itself and reports false when the request can't proceed.
func (h *FeedLikeHandler) resolve(c *gin.Context) (domain.Feed, domain.Actor, bool) {
	var req request.FeedLike
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResponseError{Message: bindErrorMessage(err)})
		return domain.Feed{}, nil, false
	}

	userID, exists := c.Get("user_id")
	uid, isInt := userID.(int64)
	if !exists || !isInt {
		c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
		return domain.Feed{}, nil, false
	}

	feed, err := h.Feeds.GetByID(c.Request.Context(), req.FeedID)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return domain.Feed{}, nil, false
	}
	return feed, domain.UserID(uid), true
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrBadParamInput.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// getStatusCode will get the code of the error from domain.LikeUsecase
func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBadParamInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		logrus.Error(err)
		return http.StatusInternalServerError
	}
}
