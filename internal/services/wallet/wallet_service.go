package wallet

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
)

var hundred = decimal.NewFromInt(100)

type WalletService struct {
	DB *gorm.DB
	// FeePercent is the platform commission withheld from released escrow.
	FeePercent decimal.Decimal
}

func NewWalletService(db *gorm.DB, feePercent decimal.Decimal) *WalletService {
	return &WalletService{DB: db, FeePercent: feePercent}
}

// Split returns the freelancer's share and the platform fee for a gross
// escrow amount. The fee is rounded to cents; net absorbs the remainder.
func (s *WalletService) Split(gross decimal.Decimal) (net, fee decimal.Decimal) {
	fee = gross.Mul(s.FeePercent).Div(hundred).Round(2)
	return gross.Sub(fee), fee
}

// CreditFreelancer appends a credit entry to the freelancer's ledger.
// This must be called within the transaction that releases the escrow.
func (s *WalletService) CreditFreelancer(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, description string) error {
	if !amount.IsPositive() {
		return errors.New("amount to credit must be greater than zero")
	}

	ledger := models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        models.WalletTrxCredit,
		Description: description,
		ReferenceID: &referenceID,
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return fmt.Errorf("wallet: credit %s: %w", userID, err)
	}
	return nil
}

// Balance sums the ledger: credits minus debits.
func (s *WalletService) Balance(db *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var bal decimal.Decimal
	row := db.Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.WalletTrxCredit).
		Where("user_id = ?", userID).
		Row()
	if err := row.Scan(&bal); err != nil {
		return decimal.Zero, fmt.Errorf("wallet: balance %s: %w", userID, err)
	}
	return bal, nil
}

// Entries lists the most recent ledger entries, newest first.
func (s *WalletService) Entries(db *gorm.DB, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
