package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/models"
	"github.com/drestrepo/giftregistry/internal/registry"
)

type reportContribution struct {
	UserID        uuid.UUID       `json:"user_id"`
	Username      string          `json:"username"`
	Amount        decimal.Decimal `json:"amount"`
	ContributedAt time.Time       `json:"contributed_at"`
	ReceiptFile   *string         `json:"receipt_file"`
	Note          *string         `json:"note"`
}

type contributionsReportRow struct {
	GiftID           uuid.UUID            `json:"gift_id"`
	GiftName         string               `json:"gift_name"`
	GiftPrice        decimal.Decimal      `json:"gift_price"`
	IsContributed    bool                 `json:"is_contributed"`
	TotalContributed decimal.Decimal      `json:"total_contributed"`
	Contributions    []reportContribution `json:"contributions"`
}

// ContributionsReport is the verification surface for the accounting
// invariants: it exposes both the cached funded flag and the total
// recomputed from the ledger, per gift, with the full entry list.
func ContributionsReport(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var gifts []models.Gift
	if err := gormDB.Where("is_active = ?", true).Order("name ASC").Find(&gifts).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving gifts.")
		return
	}

	totals, err := contributedTotals(gormDB)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving contribution totals.")
		return
	}

	var entries []models.Contribution
	if err := gormDB.Preload("User").Order("contributed_at DESC, id DESC").Find(&entries).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving contributions.")
		return
	}

	byGift := make(map[uuid.UUID][]reportContribution)
	for _, entry := range entries {
		username := ""
		if entry.User != nil {
			username = entry.User.Username
		}
		byGift[entry.GiftID] = append(byGift[entry.GiftID], reportContribution{
			UserID:        entry.UserID,
			Username:      username,
			Amount:        entry.Amount,
			ContributedAt: entry.ContributedAt,
			ReceiptFile:   entry.ReceiptFile,
			Note:          entry.Note,
		})
	}

	rows := make([]contributionsReportRow, 0, len(gifts))
	for _, gift := range gifts {
		contributions := byGift[gift.ID]
		if contributions == nil {
			contributions = []reportContribution{}
		}
		rows = append(rows, contributionsReportRow{
			GiftID:           gift.ID,
			GiftName:         gift.Name,
			GiftPrice:        gift.Price,
			IsContributed:    gift.IsContributed,
			TotalContributed: totals[gift.ID],
			Contributions:    contributions,
		})
	}

	c.JSON(http.StatusOK, rows)
}

type summaryReportRow struct {
	GiftID            uuid.UUID       `json:"gift_id"`
	GiftName          string          `json:"gift_name"`
	GiftPrice         decimal.Decimal `json:"gift_price"`
	IsContributed     bool            `json:"is_contributed"`
	TotalContributed  decimal.Decimal `json:"total_contributed"`
	ContributionCount int64           `json:"contribution_count"`
	Remaining         decimal.Decimal `json:"remaining"`
	Percentage        decimal.Decimal `json:"percentage"`
}

func SummaryReport(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var gifts []models.Gift
	if err := gormDB.Where("is_active = ?", true).Order("name ASC").Find(&gifts).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving gifts.")
		return
	}

	totals, err := contributedTotals(gormDB)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving contribution totals.")
		return
	}

	var counts []struct {
		GiftID uuid.UUID
		Count  int64
	}
	err = gormDB.Model(&models.Contribution{}).
		Select("gift_id, COUNT(id) AS count").
		Group("gift_id").
		Scan(&counts).Error
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error counting contributions.")
		return
	}
	countByGift := make(map[uuid.UUID]int64, len(counts))
	for _, row := range counts {
		countByGift[row.GiftID] = row.Count
	}

	hundred := decimal.NewFromInt(100)
	rows := make([]summaryReportRow, 0, len(gifts))
	for _, gift := range gifts {
		total := totals[gift.ID]
		percentage := decimal.Zero
		if gift.Price.GreaterThan(decimal.Zero) {
			percentage = total.Div(gift.Price).Mul(hundred).Round(2)
		}
		rows = append(rows, summaryReportRow{
			GiftID:            gift.ID,
			GiftName:          gift.Name,
			GiftPrice:         gift.Price,
			IsContributed:     gift.IsContributed,
			TotalContributed:  total,
			ContributionCount: countByGift[gift.ID],
			Remaining:         gift.Price.Sub(total),
			Percentage:        percentage,
		})
	}

	c.JSON(http.StatusOK, rows)
}

// OrphansReport lists ledger entries whose gift was hard-deleted. A
// non-empty result means an administrator removed a gift that already had
// money against it.
func OrphansReport(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	orphans, err := registry.NewService(gormDB).Orphaned()
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving orphaned contributions.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(orphans),
		"orphans": orphans,
	})
}
