/*
seed.go - Demo catalog data

PURPOSE:
  Loads a small set of partner rewards at startup when the catalog is empty,
  so a fresh database is immediately usable for demos and local development.
  An already-populated catalog is left untouched.
*/
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/catalog"
)

// SeedCatalog inserts the demo rewards if the catalog has none.
func SeedCatalog(ctx context.Context, store catalog.Store, logger *zap.Logger) error {
	existing, err := store.ListAvailable(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, r := range demoRewards() {
		if err := store.SaveReward(ctx, r); err != nil {
			return err
		}
	}

	if logger != nil {
		logger.Info("seeded demo catalog", zap.Int("rewards", len(demoRewards())))
	}
	return nil
}

func demoRewards() []catalog.Reward {
	now := time.Now().UTC()
	in90Days := now.AddDate(0, 0, 90)
	one := 1
	three := 3
	fifty := 50

	return []catalog.Reward{
		{
			ID:            "ntuc-5-voucher",
			Partner:       catalog.PartnerNTUC,
			Name:          "NTUC $5 Grocery Voucher",
			Description:   "S$5 off your next grocery run at any NTUC FairPrice outlet",
			CreditCost:    100,
			MonetaryValue: decimal.NewFromInt(5),
			Category:      catalog.CategoryVoucher,
			StockQuantity: 200,
			IsAvailable:   true,
			IsFeatured:    true,
			ValidUntil:    &in90Days,
			DailyLimit:    &one,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "ntuc-20-voucher",
			Partner:       catalog.PartnerNTUC,
			Name:          "NTUC $20 Grocery Voucher",
			Description:   "S$20 off at any NTUC FairPrice outlet",
			CreditCost:    350,
			MonetaryValue: decimal.NewFromInt(20),
			Category:      catalog.CategoryVoucher,
			StockQuantity: 50,
			IsAvailable:   true,
			TotalLimit:    &three,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:               "starbucks-tall-drink",
			Partner:          catalog.PartnerStarbucks,
			Name:             "Starbucks Tall Handcrafted Drink",
			Description:      "Any tall handcrafted beverage, hot or iced",
			CreditCost:       150,
			MonetaryValue:    decimal.NewFromFloat(7.50),
			Category:         catalog.CategoryVoucher,
			StockQuantity:    100,
			IsAvailable:      true,
			IsFeatured:       true,
			MinCreditBalance: &fifty,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:             "grab-3-ride-discount",
			Partner:        catalog.PartnerGrab,
			Name:           "Grab $3 Ride Discount",
			Description:    "S$3 off your next Grab ride",
			CreditCost:     80,
			MonetaryValue:  decimal.NewFromInt(3),
			Category:       catalog.CategoryDiscount,
			UnlimitedStock: true,
			IsAvailable:    true,
			DailyLimit:     &one,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:            "eco-tote-bag",
			Partner:       "eco",
			Name:          "EcoSteps Tote Bag",
			Description:   "Recycled-canvas tote, collect at partner outlets",
			CreditCost:    250,
			MonetaryValue: decimal.NewFromInt(12),
			Category:      catalog.CategoryPhysicalGood,
			StockQuantity: 30,
			IsAvailable:   true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
}
