package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/models"
)

// GetEvent serves the most recently created event. The registry describes
// a single wedding, so there is no list endpoint.
func GetEvent(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var event models.Event
	if err := gormDB.Order("created_at DESC").First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving event.")
		return
	}

	c.JSON(http.StatusOK, event)
}

func CreateEvent(c *gin.Context) {
	title := c.PostForm("title")
	coupleNames := c.PostForm("couple_names")
	weddingDateStr := c.PostForm("wedding_date")

	if title == "" || coupleNames == "" || weddingDateStr == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Missing required fields.")
		return
	}

	weddingDate, err := time.Parse(time.RFC3339, weddingDateStr)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid wedding date format.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	event := models.Event{
		Title:                title,
		CoupleNames:          coupleNames,
		WeddingDate:          weddingDate,
		Location:             c.PostForm("location"),
		Address:              c.PostForm("address"),
		DressCode:            c.DefaultPostForm("dress_code", "Elegante"),
		DressCodeDescription: helpers.OptionalString(c.PostForm("dress_code_description")),
		AdditionalInfo:       helpers.OptionalString(c.PostForm("additional_info")),
	}

	bannerFile, err := c.FormFile("banner")
	if err == nil {
		bannerPath, err := helpers.UploadFile(c, bannerFile, "event_banners")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		event.BannerImageURL = &bannerPath
	}

	if err := gormDB.Create(&event).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create event.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Event created successfully.",
		"event_id": event.ID,
	})
}

func UpdateEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var event models.Event
	if err := gormDB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding event.")
		return
	}

	if title := c.PostForm("title"); title != "" {
		event.Title = title
	}
	if coupleNames := c.PostForm("couple_names"); coupleNames != "" {
		event.CoupleNames = coupleNames
	}
	if weddingDateStr := c.PostForm("wedding_date"); weddingDateStr != "" {
		weddingDate, err := time.Parse(time.RFC3339, weddingDateStr)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid wedding date format.")
			return
		}
		event.WeddingDate = weddingDate
	}
	if location, ok := c.GetPostForm("location"); ok {
		event.Location = location
	}
	if address, ok := c.GetPostForm("address"); ok {
		event.Address = address
	}
	if dressCode := c.PostForm("dress_code"); dressCode != "" {
		event.DressCode = dressCode
	}
	if description, ok := c.GetPostForm("dress_code_description"); ok {
		event.DressCodeDescription = helpers.OptionalString(description)
	}
	if info, ok := c.GetPostForm("additional_info"); ok {
		event.AdditionalInfo = helpers.OptionalString(info)
	}

	bannerFile, err := c.FormFile("banner")
	if err == nil {
		bannerPath, err := helpers.UploadFile(c, bannerFile, "event_banners")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		if event.BannerImageURL != nil {
			helpers.DeleteFile(*event.BannerImageURL)
		}
		event.BannerImageURL = &bannerPath
	}

	if err := gormDB.Save(&event).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update event.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event updated successfully.",
		"event":   event,
	})
}
