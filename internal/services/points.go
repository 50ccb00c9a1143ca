package services

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	MinPickupPoints = 5
	MaxPickupPoints = 500
)

// PointsFor is the reward for a verified pickup of the given estimated weight in
// kilograms: round(10 * w^0.75), clamped to [MinPickupPoints, MaxPickupPoints].
func PointsFor(weightKg decimal.Decimal) int {
	if !weightKg.IsPositive() {
		return MinPickupPoints
	}
	raw := 10 * math.Pow(weightKg.InexactFloat64(), 0.75)
	points := decimal.NewFromFloat(raw).Round(0).IntPart()
	if points < MinPickupPoints {
		return MinPickupPoints
	}
	if points > MaxPickupPoints {
		return MaxPickupPoints
	}
	return int(points)
}
