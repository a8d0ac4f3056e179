package loadout

// Stats are the global aggregate counters published by the stats refresher.
type Stats struct {
	TotalLoadouts int64 `json:"totalLoadouts"`
	TotalUsers    int64 `json:"totalUsers"`
	TotalLikes    int64 `json:"totalLikes"`
	NewToday      int64 `json:"newToday"`
}

// Summary is the loadout count overview read from the global stats record.
type Summary struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// UserStats are the counters kept on a user profile.
type UserStats struct {
	LoadoutCount int64 `json:"loadoutCount"`
	TotalLikes   int64 `json:"totalLikes"`
	TotalViews   int64 `json:"totalViews"`
}

