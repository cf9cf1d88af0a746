package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/http/controller/dto"
	"github.com/tnqbao/gau-image-service/utils"
)

const ServiceName = "image-service"

// Health touches no collaborator and is served without authentication.
func (ctrl *Controller) Health(c *gin.Context) {
	utils.JSON200(c, dto.HealthResponseDTO{Status: "ok", Service: ServiceName})
}
