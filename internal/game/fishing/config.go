// Package fishing implements the points fishing game: rod tiers, the
// specimen tables, and the categorical outcome roll.
package fishing

// Rod tier names as exposed to the chat layer.
const (
	RodBasic    = "basic"
	RodMedium   = "medium"
	RodAdvanced = "advanced"
)

// Rod is one purchasable cast: its cost in points and which specimen
// column it awards within each category.
type Rod struct {
	Name  string
	Label string
	Cost  int64
	// Index selects the specimen within a category (0=basic, 1=medium,
	// 2=advanced).
	Index int
}

var rods = map[string]Rod{
	RodBasic:    {Name: RodBasic, Label: "初级鱼竿", Cost: 100, Index: 0},
	RodMedium:   {Name: RodMedium, Label: "中级鱼竿", Cost: 500, Index: 1},
	RodAdvanced: {Name: RodAdvanced, Label: "高级鱼竿", Cost: 1000, Index: 2},
}

// LookupRod resolves a rod tier by name.
func LookupRod(name string) (Rod, bool) {
	r, ok := rods[name]
	return r, ok
}

// Rods lists all rod tiers in ascending cost order.
func Rods() []Rod {
	return []Rod{rods[RodBasic], rods[RodMedium], rods[RodAdvanced]}
}

// Specimen is one catchable fish: display name and reward points.
type Specimen struct {
	Name   string
	Reward int64
}

// Category is one outcome class of the roll. Weight is expressed in
// basis points of rollBasis. Specimens are indexed by rod tier.
type Category struct {
	ID        int
	Weight    int64
	Legendary bool
	Specimens [3]Specimen
}

// rollBasis is the denominator of the categorical distribution.
const rollBasis = 10_000

// categories is the outcome table. Weights sum to rollBasis together
// with failWeight: 75% common, 15% / 4.9% / 0.1% legendary, 5% miss.
var categories = []Category{
	{ID: 1, Weight: 7_500, Specimens: [3]Specimen{
		{Name: "鲫鱼", Reward: 80},
		{Name: "鲤鱼", Reward: 400},
		{Name: "金鲳鱼", Reward: 800},
	}},
	{ID: 2, Weight: 1_500, Legendary: true, Specimens: [3]Specimen{
		{Name: "黑鱼", Reward: 150},
		{Name: "鳜鱼", Reward: 750},
		{Name: "石斑鱼", Reward: 1_500},
	}},
	{ID: 3, Weight: 490, Legendary: true, Specimens: [3]Specimen{
		{Name: "娃娃鱼", Reward: 500},
		{Name: "中华鲟", Reward: 2_500},
		{Name: "蓝鳍金枪鱼", Reward: 5_000},
	}},
	{ID: 4, Weight: 10, Legendary: true, Specimens: [3]Specimen{
		{Name: "金龙鱼", Reward: 10_000},
		{Name: "白鲸", Reward: 50_000},
		{Name: "深海巨怪", Reward: 100_000},
	}},
}

const failWeight = 500

// pickCategory maps a roll in [0, rollBasis) to an outcome category, or
// nil for a miss. Category intervals come first, the miss band last.
func pickCategory(roll int64) *Category {
	var cursor int64
	for i := range categories {
		cursor += categories[i].Weight
		if roll < cursor {
			return &categories[i]
		}
	}
	return nil
}
