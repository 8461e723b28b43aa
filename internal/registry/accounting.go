package registry

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drestrepo/giftregistry/internal/models"
)

// Service is the only writer of the contribution ledger and of the gift's
// cached funded flag. Every write runs inside a transaction that locks the
// gift row, so concurrent contributions to the same gift are strictly
// ordered while different gifts proceed in parallel.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type FundingState struct {
	Price            decimal.Decimal `json:"price"`
	TotalContributed decimal.Decimal `json:"total_contributed"`
	Remaining        decimal.Decimal `json:"remaining"`
	IsFullyFunded    bool            `json:"is_fully_funded"`
}

type ContributionResult struct {
	Gift             models.Gift           `json:"gift"`
	TotalContributed decimal.Decimal       `json:"total_contributed"`
	Remaining        decimal.Decimal       `json:"remaining"`
	IsFullyFunded    bool                  `json:"is_fully_funded"`
	Contributions    []models.Contribution `json:"contributions"`
}

// Contribute validates and records one contribution toward a gift.
// Validation order: amount > 0, gift exists and is active, gift not
// already funded, amount within price, amount within remaining balance.
// A rejected call writes nothing.
func (s *Service) Contribute(giftID, userID uuid.UUID, amount decimal.Decimal, receiptFile, note *string) (*ContributionResult, error) {
	// The ledger column is numeric(12,2); round first so the amount that
	// is validated is exactly the amount the database will store.
	amount = amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	var result *ContributionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		gift, total, err := lockGift(tx, giftID)
		if err != nil {
			return err
		}

		if total.GreaterThanOrEqual(gift.Price) {
			return ErrAlreadyFullyFunded
		}
		if amount.GreaterThan(gift.Price) {
			return &AmountExceedsPriceError{Price: gift.Price}
		}
		remaining := gift.Price.Sub(total)
		if amount.GreaterThan(remaining) {
			return &AmountExceedsRemainingError{Remaining: remaining}
		}

		result, err = appendEntry(tx, gift, userID, amount, total, receiptFile, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleFull records a single contribution covering the entire remaining
// balance, used when a guest pays a gift off in one transaction.
func (s *Service) SettleFull(giftID, userID uuid.UUID, receiptFile, note *string) (*ContributionResult, error) {
	var result *ContributionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		gift, total, err := lockGift(tx, giftID)
		if err != nil {
			return err
		}

		remaining := gift.Price.Sub(total)
		if remaining.LessThanOrEqual(decimal.Zero) {
			return ErrAlreadyFullyFunded
		}

		result, err = appendEntry(tx, gift, userID, remaining, total, receiptFile, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FundingState recomputes the funding view straight from the ledger. It
// never consults the cached flag, so callers can compare both for drift.
func (s *Service) FundingState(giftID uuid.UUID) (*FundingState, error) {
	var gift models.Gift
	if err := s.db.Where("id = ?", giftID).First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}

	total, err := contributedTotal(s.db, giftID)
	if err != nil {
		return nil, err
	}

	return &FundingState{
		Price:            gift.Price,
		TotalContributed: total,
		Remaining:        gift.Price.Sub(total),
		IsFullyFunded:    total.GreaterThanOrEqual(gift.Price),
	}, nil
}

// Contributions returns the ledger for a gift, most recent first.
func (s *Service) Contributions(giftID uuid.UUID) ([]models.Contribution, error) {
	return giftContributions(s.db, giftID)
}

// Orphaned returns ledger entries whose gift row no longer exists. The
// live contribute path cannot create these; they only appear after an
// administrator hard-deletes a gift that had contributions.
func (s *Service) Orphaned() ([]models.Contribution, error) {
	var orphans []models.Contribution
	err := s.db.
		Where("NOT EXISTS (SELECT 1 FROM gifts WHERE gifts.id = gift_contributions.gift_id)").
		Order("contributed_at DESC, id DESC").
		Find(&orphans).Error
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

// lockGift loads the gift under a row lock and sums its ledger inside the
// same transaction, so the remaining balance cannot go stale before the
// insert commits.
func lockGift(tx *gorm.DB, giftID uuid.UUID) (*models.Gift, decimal.Decimal, error) {
	var gift models.Gift
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", giftID, true).
		First(&gift).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, ErrGiftNotFound
		}
		return nil, decimal.Zero, err
	}

	total, err := contributedTotal(tx, giftID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &gift, total, nil
}

// appendEntry writes the ledger row and re-asserts the cached flag from
// the fresh total. The flag is set on every success, including back to
// false, so a drifted cache heals on the next contribution.
func appendEntry(tx *gorm.DB, gift *models.Gift, userID uuid.UUID, amount, total decimal.Decimal, receiptFile, note *string) (*ContributionResult, error) {
	entry := models.Contribution{
		GiftID:      gift.ID,
		UserID:      userID,
		Amount:      amount,
		ReceiptFile: receiptFile,
		Note:        note,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	newTotal := total.Add(amount)
	funded := newTotal.GreaterThanOrEqual(gift.Price)
	if err := tx.Model(gift).Update("is_contributed", funded).Error; err != nil {
		return nil, err
	}
	gift.IsContributed = funded

	contributions, err := giftContributions(tx, gift.ID)
	if err != nil {
		return nil, err
	}

	return &ContributionResult{
		Gift:             *gift,
		TotalContributed: newTotal,
		Remaining:        gift.Price.Sub(newTotal),
		IsFullyFunded:    funded,
		Contributions:    contributions,
	}, nil
}

func contributedTotal(tx *gorm.DB, giftID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := tx.Model(&models.Contribution{}).
		Where("gift_id = ?", giftID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func giftContributions(tx *gorm.DB, giftID uuid.UUID) ([]models.Contribution, error) {
	var contributions []models.Contribution
	err := tx.Preload("User").
		Where("gift_id = ?", giftID).
		Order("contributed_at DESC, id DESC").
		Find(&contributions).Error
	if err != nil {
		return nil, err
	}
	return contributions, nil
}
