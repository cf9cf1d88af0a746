package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/http/controller"
	middlewares "github.com/tnqbao/gau-image-service/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	r.GET("/health", ctrl.Health)

	apiRoutes := r.Group("/v1")
	{
		apiRoutes.Use(middles.AttachIdentityMiddleware, middles.RequireIdentityMiddleware)

		apiRoutes.POST("/submit", ctrl.SubmitImage)
		apiRoutes.GET("/gallery", ctrl.ListGallery)
	}

	internalRoutes := r.Group("/internal/v1")
	{
		internalRoutes.Use(middles.CallbackAuthMiddleware)

		internalRoutes.POST("/images/:id/confirm", ctrl.ConfirmImage)
	}

	return r
}
