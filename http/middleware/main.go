package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/http/controller"
)

type Middlewares struct {
	CORSMiddleware            gin.HandlerFunc
	AttachIdentityMiddleware  gin.HandlerFunc
	RequireIdentityMiddleware gin.HandlerFunc
	CallbackAuthMiddleware    gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors, err := CORSMiddleware(ctrl.Config.EnvConfig)
	if err != nil {
		return nil, err
	}

	return &Middlewares{
		CORSMiddleware:            cors,
		AttachIdentityMiddleware:  AttachIdentityMiddleware(ctrl.Verifier, ctrl.Logger),
		RequireIdentityMiddleware: RequireIdentityMiddleware(ctrl.Logger),
		CallbackAuthMiddleware:    CallbackAuthMiddleware(ctrl.Config.EnvConfig, ctrl.Logger),
	}, nil
}
