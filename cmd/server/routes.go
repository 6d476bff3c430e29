package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/folio/internal/mailer"
	"github.com/MarkoPoloResearchLab/folio/internal/metrics"
)

const (
	apiRoutePrefix           = "/api"
	apiRouteContact          = "/contact"
	apiRouteProjects         = "/projects"
	apiRouteSkills           = "/skills"
	routeHealth              = "/health"
	routeUploads             = "/uploads"
	corsHeaderContentType    = "Content-Type"
	corsMaxAge               = 12 * time.Hour
	invalidCORSConfiguration = "invalid allowed origins"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

type routerDependencies struct {
	database         *gorm.DB
	logger           *zap.Logger
	sender           mailer.Sender
	ownerAddress     string
	allowedOrigins   []string
	uploadsDirectory string
}

func newCORSConfig(allowedOrigins []string) (cors.Config, error) {
	corsConfig := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}
	if validationErr := corsConfig.Validate(); validationErr != nil {
		return cors.Config{}, fmt.Errorf("%s: %w", invalidCORSConfiguration, validationErr)
	}
	return corsConfig, nil
}

func buildRouter(dependencies routerDependencies) (*gin.Engine, error) {
	corsConfig, corsErr := newCORSConfig(dependencies.allowedOrigins)
	if corsErr != nil {
		return nil, corsErr
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(dependencies.logger))
	router.Use(metrics.GinMiddleware())
	router.Use(httpapi.SecurityHeaders())
	router.Use(cors.New(corsConfig))

	router.GET(routeHealth, httpapi.HealthHandler(dependencies.database, dependencies.logger))
	router.GET(metrics.MetricsPath, gin.WrapH(metrics.Handler()))
	router.Static(routeUploads, dependencies.uploadsDirectory)

	contactHandlers := httpapi.NewContactHandlers(dependencies.database, dependencies.logger, dependencies.sender, dependencies.ownerAddress)
	catalogHandlers := httpapi.NewCatalogHandlers(dependencies.database, dependencies.logger)

	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.POST(apiRouteContact, contactHandlers.CreateInquiry)
	apiGroup.GET(apiRouteProjects, catalogHandlers.ListProjects)
	apiGroup.GET(apiRouteSkills, catalogHandlers.ListSkills)

	return router, nil
}
