// Package mining implements the mining card yield game: card tiers,
// purchase, the daily accrual tick, and claim-all.
package mining

import "telegram-lottery-bot/internal/model"

// Tier names as exposed to the chat layer.
const (
	TierBronze  = "bronze"
	TierSilver  = "silver"
	TierGold    = "gold"
	TierDiamond = "diamond"
)

// Tier is one purchasable card class. Cost is wallet USDT in smallest
// units; DailyPoints accrue once per calendar day for TotalDays days.
type Tier struct {
	Name        string
	Label       string
	Cost        int64
	DailyPoints int64
	TotalDays   int
	MaxCards    int
}

// TotalPoints is the card's lifetime yield.
func (t Tier) TotalPoints() int64 {
	return t.DailyPoints * int64(t.TotalDays)
}

var tiers = map[string]Tier{
	TierBronze:  {Name: TierBronze, Label: "青铜矿卡", Cost: model.USDTScale / 2, DailyPoints: 5_000, TotalDays: 3, MaxCards: 10},
	TierSilver:  {Name: TierSilver, Label: "白银矿卡", Cost: model.USDTScale, DailyPoints: 10_000, TotalDays: 3, MaxCards: 10},
	TierGold:    {Name: TierGold, Label: "黄金矿卡", Cost: 2 * model.USDTScale, DailyPoints: 20_000, TotalDays: 3, MaxCards: 10},
	TierDiamond: {Name: TierDiamond, Label: "钻石矿卡", Cost: 10 * model.USDTScale, DailyPoints: 100_000, TotalDays: 3, MaxCards: 10},
}

// tierOrder lists tiers in ascending cost order for menus.
var tierOrder = []string{TierBronze, TierSilver, TierGold, TierDiamond}

// LookupTier resolves a card tier by name.
func LookupTier(name string) (Tier, bool) {
	t, ok := tiers[name]
	return t, ok
}

// Tiers lists all card tiers in ascending cost order.
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierOrder))
	for _, name := range tierOrder {
		out = append(out, tiers[name])
	}
	return out
}
