package connections

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rishtahq/rishta-engine/internal/activity"
	"github.com/rishtahq/rishta-engine/internal/cache"
	svcErr "github.com/rishtahq/rishta-engine/internal/errors"
)

const defaultPageSize = 20

// LikeHandler serves POST /v1/likes.
//
// Body: {"liker_user_id": n, "liked_user_id": n, "pass": bool}.
// A like is gated on the liker's likes_sent quota; denials come back
// as 429 with the structured decision so the caller can render an
// upgrade prompt. Passes are not quota-gated.
func (s *Service) LikeHandler(c *gin.Context) {
	var body struct {
		LikerUserID uint64 `json:"liker_user_id" binding:"required"`
		LikedUserID uint64 `json:"liked_user_id" binding:"required"`
		Pass        bool   `json:"pass"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, svcErr.InvalidArgument("liker_user_id and liked_user_id are required"))
		return
	}
	if body.LikerUserID == body.LikedUserID {
		respondError(c, svcErr.InvalidArgument("cannot decide on yourself"))
		return
	}

	ctx := c.Request.Context()

	if exists, err := s.userRepo.Exists(ctx, body.LikedUserID); err != nil {
		respondError(c, svcErr.Unavailable(err))
		return
	} else if !exists {
		respondError(c, svcErr.NotFound("liked user not found"))
		return
	}

	if body.Pass {
		res, err := s.Pass(ctx, body.LikerUserID, body.LikedUserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	decision, err := s.gate.Check(ctx, body.LikerUserID, activity.KindLikesSent)
	if err != nil {
		respondError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, decision)
		return
	}

	res, err := s.Like(ctx, body.LikerUserID, body.LikedUserID)
	if err != nil {
		s.appCtx.Logger.Error("like failed",
			"liker", body.LikerUserID, "liked", body.LikedUserID, "err", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// MutualStatusHandler serves GET /v1/matches/status?user1=&user2=.
func (s *Service) MutualStatusHandler(c *gin.Context) {
	user1, err1 := strconv.ParseUint(c.Query("user1"), 10, 64)
	user2, err2 := strconv.ParseUint(c.Query("user2"), 10, 64)
	if err1 != nil || err2 != nil || user1 == 0 || user2 == 0 {
		respondError(c, svcErr.InvalidArgument("user1 and user2 must be valid uint64"))
		return
	}

	matched, ref, err := s.MutualStatus(c.Request.Context(), user1, user2)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"matched": matched}
	if ref != "" {
		resp["match_ref"] = ref
	}
	c.JSON(http.StatusOK, resp)
}

// UnmatchHandler serves POST /v1/matches/:ref/unmatch.
func (s *Service) UnmatchHandler(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		respondError(c, svcErr.InvalidArgument("match ref is required"))
		return
	}

	if err := s.Unmatch(c.Request.Context(), ref); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unmatched"})
}

// ListLikedYouHandler serves GET /v1/likes/received/:user_id.
//
// Cursor-paginated: pass the returned next_token back as ?token= for
// the next page. Users the recipient passed are excluded.
func (s *Service) ListLikedYouHandler(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondError(c, svcErr.InvalidArgument("user_id must be a valid uint64"))
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var token *string
	if raw := c.Query("token"); raw != "" {
		token = &raw
	}

	likes, nextToken, err := s.likeRepo.GetLikers(c.Request.Context(), userID, token, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	type liker struct {
		LikerID       uint64 `json:"liker_id"`
		UnixTimestamp int64  `json:"unix_timestamp"`
	}
	likers := make([]liker, 0, len(likes))
	for _, l := range likes {
		if l.LikerID == nil {
			continue
		}
		likers = append(likers, liker{
			LikerID:       *l.LikerID,
			UnixTimestamp: l.UpdatedAt.UnixMilli(),
		})
	}

	resp := gin.H{"likers": likers}
	if nextToken != nil {
		resp["next_token"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

// CountLikedYouHandler serves GET /v1/likes/received/:user_id/count.
//
// Cache-first strategy:
//  1. Attempt the Redis counter (likes:count:userID).
//  2. On miss fall back to the DB and repopulate the cache.
func (s *Service) CountLikedYouHandler(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondError(c, svcErr.InvalidArgument("user_id must be a valid uint64"))
		return
	}

	ctx := c.Request.Context()
	key := s.appCtx.RedisCache.KeyForLikeCount(userID)

	if cached, ok := s.appCtx.RedisCache.GetCount(ctx, key); ok {
		c.JSON(http.StatusOK, gin.H{"count": cached})
		return
	}

	count, err := s.likeRepo.CountLikers(ctx, userID)
	if err != nil {
		respondError(c, svcErr.Unavailable(err))
		return
	}

	_ = s.appCtx.RedisCache.Set(ctx, key, strconv.FormatInt(count, 10), cache.CountTTL)

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// RemoveUserHandler serves DELETE /v1/users/:user_id/references.
// Called by the platform when an account is removed; like and match
// rows persist with the user references nulled.
func (s *Service) RemoveUserHandler(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondError(c, svcErr.InvalidArgument("user_id must be a valid uint64"))
		return
	}

	if err := s.RemoveUserReferences(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func respondError(c *gin.Context, err error) {
	status, msg := svcErr.HTTPStatus(err)
	c.JSON(status, gin.H{"error": msg})
}
