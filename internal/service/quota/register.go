package quota

import (
	"github.com/gin-gonic/gin"

	"github.com/rishtahq/rishta-engine/internal/app"
)

// Registrar ties the quota gate into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the quota service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the quota routes to the router.
func (r *Registrar) Register(router *gin.Engine) {
	service := NewQuotaService(r.appCtx)
	router.GET("/v1/quota/:user_id/:kind", service.CheckHandler)
	router.POST("/v1/quota/:user_id/:kind/charge", service.ChargeHandler)
}
