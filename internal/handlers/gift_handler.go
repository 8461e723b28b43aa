package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/models"
	"github.com/drestrepo/giftregistry/internal/registry"
)

type ContributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   *string         `json:"note"`
}

type giftView struct {
	models.Gift
	TotalContributed decimal.Decimal `json:"total_contributed"`
	Remaining        decimal.Decimal `json:"remaining"`
	IsFullyFunded    bool            `json:"is_fully_funded"`
}

func ListGifts(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Model(&models.Gift{}).Preload("Category").Where("is_active = ?", true)

	if category := c.Query("category"); category != "" {
		query = query.Joins("JOIN categories ON categories.id = gifts.category_id").
			Where("categories.name = ?", category)
	}
	if minPrice := c.Query("min_price"); minPrice != "" {
		min, err := helpers.ParseAmount(minPrice)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid minimum price.")
			return
		}
		query = query.Where("price >= ?", min)
	}
	if maxPrice := c.Query("max_price"); maxPrice != "" {
		max, err := helpers.ParseAmount(maxPrice)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid maximum price.")
			return
		}
		query = query.Where("price <= ?", max)
	}

	switch c.DefaultQuery("sort_by", "name") {
	case "price_asc":
		query = query.Order("price ASC")
	case "price_desc":
		query = query.Order("price DESC")
	default:
		query = query.Order("name ASC")
	}

	var gifts []models.Gift
	if err := query.Find(&gifts).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving gifts.")
		return
	}

	totals, err := contributedTotals(gormDB)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving contributions.")
		return
	}

	views := make([]giftView, 0, len(gifts))
	for _, gift := range gifts {
		total := totals[gift.ID]
		views = append(views, giftView{
			Gift:             gift,
			TotalContributed: total,
			Remaining:        gift.Price.Sub(total),
			IsFullyFunded:    total.GreaterThanOrEqual(gift.Price),
		})
	}

	c.JSON(http.StatusOK, views)
}

func GetGift(c *gin.Context) {
	giftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var gift models.Gift
	if err := gormDB.Preload("Category").Where("id = ?", giftID).First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Gift not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving gift.")
		return
	}

	service := registry.NewService(gormDB)
	state, err := service.FundingState(giftID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error computing funding state.")
		return
	}
	contributions, err := service.Contributions(giftID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving contributions.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gift": giftView{
			Gift:             gift,
			TotalContributed: state.TotalContributed,
			Remaining:        state.Remaining,
			IsFullyFunded:    state.IsFullyFunded,
		},
		"contributions": contributions,
	})
}

func ContributeToGift(c *gin.Context) {
	giftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift ID.")
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	result, err := registry.NewService(gormDB).Contribute(giftID, userUUID, req.Amount, nil, req.Note)
	if err != nil {
		respondWithAccountingError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func CreateGift(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	name := c.PostForm("name")
	if name == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Gift name is required.")
		return
	}

	price, err := helpers.ParseAmount(c.PostForm("price"))
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Price must be a positive amount.")
		return
	}

	giftType := c.DefaultPostForm("gift_type", models.GiftTypeFullPayment)
	if !models.ValidGiftType(giftType) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift type.")
		return
	}

	gift := models.Gift{
		Name:        name,
		Description: c.PostForm("description"),
		Price:       price,
		Currency:    c.DefaultPostForm("currency", "PEN"),
		GiftType:    giftType,
		Available:   1,
		Total:       1,
		IsActive:    true,
	}

	if available := c.PostForm("available"); available != "" {
		n, err := helpers.StringToInt(available)
		if err != nil || n < 0 {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid available count.")
			return
		}
		gift.Available = n
	}
	if total := c.PostForm("total"); total != "" {
		n, err := helpers.StringToInt(total)
		if err != nil || n < 1 {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid total count.")
			return
		}
		gift.Total = n
	}

	if categoryName := c.PostForm("category"); categoryName != "" {
		var category models.Category
		if err := gormDB.Where("name = ?", categoryName).First(&category).Error; err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Unknown category.")
			return
		}
		gift.CategoryID = &category.ID
	}

	imageFile, err := c.FormFile("image")
	if err == nil {
		imagePath, err := helpers.UploadFile(c, imageFile, "gift_images")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		gift.ImageURL = &imagePath
	}

	if err := gormDB.Create(&gift).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create gift.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Gift created successfully.",
		"gift_id": gift.ID,
	})
}

func UpdateGift(c *gin.Context) {
	giftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var gift models.Gift
	if err := gormDB.Where("id = ?", giftID).First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Gift not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding gift.")
		return
	}

	if name := c.PostForm("name"); name != "" {
		gift.Name = name
	}
	if description, ok := c.GetPostForm("description"); ok {
		gift.Description = description
	}
	if priceStr := c.PostForm("price"); priceStr != "" {
		price, err := helpers.ParseAmount(priceStr)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			helpers.RespondWithError(c, http.StatusBadRequest, "Price must be a positive amount.")
			return
		}
		gift.Price = price
	}
	if giftType := c.PostForm("gift_type"); giftType != "" {
		if !models.ValidGiftType(giftType) {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift type.")
			return
		}
		gift.GiftType = giftType
	}
	if isActive, ok := c.GetPostForm("is_active"); ok {
		gift.IsActive = isActive == "true"
	}
	if categoryName := c.PostForm("category"); categoryName != "" {
		var category models.Category
		if err := gormDB.Where("name = ?", categoryName).First(&category).Error; err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Unknown category.")
			return
		}
		gift.CategoryID = &category.ID
	}

	imageFile, err := c.FormFile("image")
	if err == nil {
		imagePath, err := helpers.UploadFile(c, imageFile, "gift_images")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		if gift.ImageURL != nil {
			helpers.DeleteFile(*gift.ImageURL)
		}
		gift.ImageURL = &imagePath
	}

	if err := gormDB.Save(&gift).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update gift.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Gift updated successfully.",
		"gift":    gift,
	})
}

// DeleteGift removes the gift row outright. Ledger entries against it are
// kept and become visible in the orphans report.
func DeleteGift(c *gin.Context) {
	giftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid gift ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	// Count after the delete, in the same transaction, so the reported
	// orphan count matches the ledger rows actually left behind.
	var contributionCount int64
	err = gormDB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", giftID).Delete(&models.Gift{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Contribution{}).Where("gift_id = ?", giftID).Count(&contributionCount).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Gift not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete gift.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":                "Gift deleted successfully.",
		"orphaned_contributions": contributionCount,
	})
}

// respondWithAccountingError translates accounting error kinds into 4xx
// responses; anything unrecognized is a storage failure and stays a 500.
func respondWithAccountingError(c *gin.Context, err error) {
	var exceedsPrice *registry.AmountExceedsPriceError
	var exceedsRemaining *registry.AmountExceedsRemainingError

	switch {
	case errors.Is(err, registry.ErrInvalidAmount):
		helpers.RespondWithError(c, http.StatusBadRequest, "Contribution amount must be greater than zero.")
	case errors.Is(err, registry.ErrGiftNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Gift not found.")
	case errors.Is(err, registry.ErrAlreadyFullyFunded):
		helpers.RespondWithError(c, http.StatusBadRequest, "This gift is already fully funded.")
	case errors.As(err, &exceedsPrice):
		helpers.RespondWithError(c, http.StatusBadRequest, exceedsPrice.Error())
	case errors.As(err, &exceedsRemaining):
		helpers.RespondWithError(c, http.StatusBadRequest, exceedsRemaining.Error())
	default:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to record contribution.")
	}
}

func contributedTotals(gormDB *gorm.DB) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		GiftID uuid.UUID
		Total  decimal.Decimal
	}
	err := gormDB.Model(&models.Contribution{}).
		Select("gift_id, COALESCE(SUM(amount), 0) AS total").
		Group("gift_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.GiftID] = row.Total
	}
	return totals, nil
}
