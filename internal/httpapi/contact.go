package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/mailer"
	"github.com/MarkoPoloResearchLab/folio/internal/metrics"
	"github.com/MarkoPoloResearchLab/folio/internal/model"
	"github.com/MarkoPoloResearchLab/folio/internal/storage"
)

const (
	contactErrorInvalidBody   = "Invalid request body"
	contactErrorMissingFields = "All fields are required"
	contactErrorServer        = "Server error"
	contactErrorDispatch      = "Failed to send message"
	contactSuccessMessage     = "Message sent successfully!"

	logEventSaveInquiryFailed         = "save_inquiry_failed"
	logEventInquiryNotificationFailed = "inquiry_notification_failed"
	logEventInquiryAccepted           = "inquiry_accepted"

	inquirySubjectPrefix = "New Portfolio Message from "
)

// ContactHandlers accepts contact submissions, stores them and notifies the site owner.
type ContactHandlers struct {
	database     *gorm.DB
	logger       *zap.Logger
	sender       mailer.Sender
	ownerAddress string
}

type createInquiryRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// NewContactHandlers wires the handler. A nil sender falls back to logging notifications.
func NewContactHandlers(database *gorm.DB, logger *zap.Logger, sender mailer.Sender, ownerAddress string) *ContactHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactHandlers{
		database:     database,
		logger:       logger,
		sender:       resolveSender(sender, logger),
		ownerAddress: strings.TrimSpace(ownerAddress),
	}
}

func resolveSender(sender mailer.Sender, logger *zap.Logger) mailer.Sender {
	if sender == nil {
		return mailer.NewLogSender(logger)
	}
	return sender
}

// CreateInquiry handles POST /api/contact.
func (handlers *ContactHandlers) CreateInquiry(context *gin.Context) {
	var payload createInquiryRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		metrics.RecordInquiry(metrics.InquiryOutcomeRejected)
		context.JSON(http.StatusBadRequest, gin.H{"success": false, "error": contactErrorInvalidBody})
		return
	}

	inquiry, inquiryErr := model.NewInquiry(model.InquiryInput{
		Name:    payload.Name,
		Email:   payload.Email,
		Message: payload.Message,
	})
	if inquiryErr != nil {
		metrics.RecordInquiry(metrics.InquiryOutcomeRejected)
		context.JSON(http.StatusBadRequest, gin.H{"success": false, "error": contactErrorMissingFields})
		return
	}
	inquiry.ID = storage.NewID()

	requestContext := context.Request.Context()
	if createErr := handlers.database.WithContext(requestContext).Create(&inquiry).Error; createErr != nil {
		handlers.logger.Error(logEventSaveInquiryFailed, zap.Error(createErr))
		metrics.RecordInquiry(metrics.InquiryOutcomePersistFailed)
		context.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": contactErrorServer})
		return
	}

	if notifyErr := handlers.notifyOwner(requestContext, inquiry); notifyErr != nil {
		handlers.logger.Error(logEventInquiryNotificationFailed, zap.Error(notifyErr), zap.String("inquiry_id", inquiry.ID))
		metrics.RecordInquiry(metrics.InquiryOutcomeDispatchFailed)
		context.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   contactErrorDispatch,
			"details": mailer.Details(notifyErr),
		})
		return
	}

	handlers.logger.Info(logEventInquiryAccepted, zap.String("inquiry_id", inquiry.ID))
	metrics.RecordInquiry(metrics.InquiryOutcomeAccepted)
	context.JSON(http.StatusCreated, gin.H{"success": true, "message": contactSuccessMessage})
}

func (handlers *ContactHandlers) notifyOwner(ctx context.Context, inquiry model.Inquiry) error {
	if handlers.ownerAddress == "" {
		return errors.New("owner address is not configured")
	}
	return handlers.sender.Send(ctx, newInquiryNotification(handlers.ownerAddress, inquiry))
}

// newInquiryNotification addresses the message from and to the owner so replies go to the submitter.
func newInquiryNotification(ownerAddress string, inquiry model.Inquiry) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Name: %s\n", inquiry.Name)
	fmt.Fprintf(&body, "Email: %s\n", inquiry.Email)
	fmt.Fprintf(&body, "Message: %s", inquiry.Message)

	return mailer.Message{
		From:    ownerAddress,
		To:      ownerAddress,
		ReplyTo: inquiry.Email,
		Subject: inquirySubjectPrefix + inquiry.Name,
		Text:    body.String(),
	}
}
