package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/model"
)

const (
	catalogErrorServer = "Server error"

	logEventListProjectsFailed = "list_projects_failed"
	logEventListSkillsFailed   = "list_skills_failed"
)

// CatalogHandlers serves the read-only project and skill listings.
type CatalogHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
}

func NewCatalogHandlers(database *gorm.DB, logger *zap.Logger) *CatalogHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandlers{database: database, logger: logger}
}

// ListProjects returns every project, newest first.
func (handlers *CatalogHandlers) ListProjects(context *gin.Context) {
	projects := make([]model.Project, 0)
	queryErr := handlers.database.WithContext(context.Request.Context()).
		Order("created_at desc").
		Find(&projects).Error
	if queryErr != nil {
		handlers.logger.Error(logEventListProjectsFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": catalogErrorServer})
		return
	}
	context.JSON(http.StatusOK, projects)
}

// ListSkills returns every skill grouped by category.
func (handlers *CatalogHandlers) ListSkills(context *gin.Context) {
	skills := make([]model.Skill, 0)
	queryErr := handlers.database.WithContext(context.Request.Context()).
		Order("category asc").
		Order("name asc").
		Find(&skills).Error
	if queryErr != nil {
		handlers.logger.Error(logEventListSkillsFailed, zap.Error(queryErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": catalogErrorServer})
		return
	}
	context.JSON(http.StatusOK, skills)
}
