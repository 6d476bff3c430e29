package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/storage"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
	healthPingTimeout       = 2 * time.Second

	logEventHealthPingFailed = "health_ping_failed"
)

// HealthHandler reports liveness together with database reachability.
func HealthHandler(database *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		if pingErr := pingDatabase(context.Request.Context(), database); pingErr != nil {
			logger.Warn(logEventHealthPingFailed, zap.Error(pingErr))
			context.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusUnavailable})
			return
		}
		context.JSON(http.StatusOK, gin.H{"status": healthStatusOK})
	}
}

func pingDatabase(ctx context.Context, database *gorm.DB) error {
	pingContext, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return storage.Ping(pingContext, database)
}
