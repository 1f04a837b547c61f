package connections

import (
	"github.com/gin-gonic/gin"

	"github.com/rishtahq/rishta-engine/internal/app"
)

// Registrar ties the like/match engine into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the connections service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the like/match routes to the router.
func (r *Registrar) Register(router *gin.Engine) {
	service := NewConnectionsService(r.appCtx)
	router.POST("/v1/likes", service.LikeHandler)
	router.GET("/v1/matches/status", service.MutualStatusHandler)
	router.POST("/v1/matches/:ref/unmatch", service.UnmatchHandler)
	router.GET("/v1/likes/received/:user_id", service.ListLikedYouHandler)
	router.GET("/v1/likes/received/:user_id/count", service.CountLikedYouHandler)
	router.DELETE("/v1/users/:user_id/references", service.RemoveUserHandler)
}
