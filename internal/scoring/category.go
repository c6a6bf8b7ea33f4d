package scoring

// categoryPriority lists categories from strongest to weakest.
var categoryPriority = []Category{
	CategoryExpiringSoon,
	CategoryHighValue,
	CategoryQuickWin,
	CategoryNewOpportunity,
	CategoryPopular,
}

// Categories returns every category in priority order.
func Categories() []Category {
	return append([]Category(nil), categoryPriority...)
}

// ResolveCategory picks the highest-priority category among those a subsidy qualifies for.
// A subsidy that qualifies for nothing is "popular".
func ResolveCategory(qualifying map[Category]bool) Category {
	for _, category := range categoryPriority {
		if qualifying[category] {
			return category
		}
	}
	return CategoryPopular
}
