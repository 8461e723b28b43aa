package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/models"
)

type CategoryRequest struct {
	Name        string  `json:"name" binding:"required,min=2"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func ListCategories(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Model(&models.Category{})
	if c.Query("include_inactive") != "true" {
		query = query.Where("is_active = ?", true)
	}

	var categories []models.Category
	if err := query.Order("name ASC").Find(&categories).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving categories.")
		return
	}

	c.JSON(http.StatusOK, categories)
}

func GetCategory(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid category ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var category models.Category
	if err := gormDB.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Category not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving category.")
		return
	}

	c.JSON(http.StatusOK, category)
}

func CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var existing models.Category
	if err := gormDB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "A category with that name already exists.")
		return
	}

	category := models.Category{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := gormDB.Create(&category).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create category.")
		return
	}

	c.JSON(http.StatusCreated, category)
}

func UpdateCategory(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid category ID.")
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var category models.Category
	if err := gormDB.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Category not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding category.")
		return
	}

	var duplicate models.Category
	if err := gormDB.Where("name = ? AND id <> ?", req.Name, categoryID).First(&duplicate).Error; err == nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "A category with that name already exists.")
		return
	}

	category.Name = req.Name
	if req.Description != nil {
		category.Description = req.Description
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := gormDB.Save(&category).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update category.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Category updated successfully.",
		"category": category,
	})
}

// DeleteCategory refuses to remove a category while gifts still reference
// it, matching the registry's admin tooling.
func DeleteCategory(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid category ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var giftCount int64
	if err := gormDB.Model(&models.Gift{}).Where("category_id = ?", categoryID).Count(&giftCount).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error checking category usage.")
		return
	}
	if giftCount > 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Cannot delete the category because gifts are still using it.")
		return
	}

	result := gormDB.Where("id = ?", categoryID).Delete(&models.Category{})
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete category.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Category not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully."})
}
