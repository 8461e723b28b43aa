package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/middleware"
	"github.com/drestrepo/giftregistry/internal/models"
	"github.com/drestrepo/giftregistry/internal/registry"
)

type paymentResult struct {
	GiftID        string `json:"gift_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	IsFullyFunded bool   `json:"is_fully_funded,omitempty"`
}

// ConfirmPayment records transfers for one or more gifts at once. Each
// gift either gets the matching entry from amounts or is settled for its
// full remaining balance. Gifts are processed independently so one
// rejection does not abort the rest of the cart.
func ConfirmPayment(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	giftIDs := c.PostFormArray("gift_ids")
	if len(giftIDs) == 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "At least one gift is required to confirm a payment.")
		return
	}
	amounts := c.PostFormArray("amounts")
	if len(amounts) > 0 && len(amounts) != len(giftIDs) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Amounts must match the gift list.")
		return
	}

	contributorID, err := resolveContributor(c, gormDB)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to resolve contributor identity.")
		return
	}

	note := helpers.OptionalString(c.PostForm("note"))

	var receiptFile *string
	if fileHeader, err := c.FormFile("receipt"); err == nil {
		receiptPath, err := helpers.UploadFile(c, fileHeader, "receipts", helpers.ReceiptUploadConfig)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		receiptFile = &receiptPath
	}

	service := registry.NewService(gormDB)

	results := make([]paymentResult, 0, len(giftIDs))
	confirmed := 0
	for i, giftIDStr := range giftIDs {
		giftID, err := uuid.Parse(giftIDStr)
		if err != nil {
			results = append(results, paymentResult{GiftID: giftIDStr, Status: "failed", Message: "Invalid gift ID."})
			continue
		}

		var result *registry.ContributionResult
		if len(amounts) > 0 && amounts[i] != "" {
			amount, err := helpers.ParseAmount(amounts[i])
			if err != nil {
				results = append(results, paymentResult{GiftID: giftIDStr, Status: "failed", Message: "Invalid amount format."})
				continue
			}
			result, err = service.Contribute(giftID, contributorID, amount, receiptFile, note)
			if err != nil {
				results = append(results, paymentResult{GiftID: giftIDStr, Status: "failed", Message: err.Error()})
				continue
			}
		} else {
			result, err = service.SettleFull(giftID, contributorID, receiptFile, note)
			if err != nil {
				results = append(results, paymentResult{GiftID: giftIDStr, Status: "failed", Message: err.Error()})
				continue
			}
		}

		confirmed++
		results = append(results, paymentResult{
			GiftID:        giftIDStr,
			Status:        "confirmed",
			IsFullyFunded: result.IsFullyFunded,
		})
	}

	if confirmed == 0 {
		// Nothing references the uploaded receipt, so don't leave it behind.
		if receiptFile != nil {
			helpers.DeleteFile(*receiptFile)
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "No gift could be processed.",
			"results": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment confirmed successfully.",
		"results": results,
	})
}

// PaymentQR renders a QR image for the configured mobile-payment handle,
// optionally carrying the amount a guest intends to transfer.
func PaymentQR(c *gin.Context) {
	paymentCfg := middleware.GetPaymentConfig(c)
	if paymentCfg == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment configuration not found.")
		return
	}

	var payload string
	switch c.DefaultQuery("method", "yape") {
	case "yape":
		if paymentCfg.YapeNumber == "" {
			helpers.RespondWithError(c, http.StatusNotFound, "Yape is not configured.")
			return
		}
		payload = fmt.Sprintf("yape://%s", paymentCfg.YapeNumber)
	case "plin":
		if paymentCfg.PlinNumber == "" {
			helpers.RespondWithError(c, http.StatusNotFound, "Plin is not configured.")
			return
		}
		payload = fmt.Sprintf("plin://%s", paymentCfg.PlinNumber)
	default:
		helpers.RespondWithError(c, http.StatusBadRequest, "Unknown payment method.")
		return
	}

	if amountStr := c.Query("amount"); amountStr != "" {
		amount, err := helpers.ParseAmount(amountStr)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid amount format.")
			return
		}
		payload = fmt.Sprintf("%s?amount=%s", payload, amount.StringFixed(2))
	}

	qrImage, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}

// resolveContributor returns the authenticated user when present and
// falls back to the shared guest identity otherwise, so every ledger
// entry references a valid user.
func resolveContributor(c *gin.Context, gormDB *gorm.DB) (uuid.UUID, error) {
	if userID, exists := c.Get("user_id"); exists {
		if userUUID, ok := userID.(uuid.UUID); ok {
			return userUUID, nil
		}
	}

	var guest models.User
	if err := gormDB.Where("username = ?", models.GuestUsername).First(&guest).Error; err != nil {
		return uuid.Nil, err
	}
	return guest.ID, nil
}
