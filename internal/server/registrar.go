package server

import "github.com/gin-gonic/gin"

// Registrar is a common interface for all HTTP service registrars
type Registrar interface {
	Register(router *gin.Engine)
}
