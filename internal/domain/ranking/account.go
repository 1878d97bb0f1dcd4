package ranking

// Account is a read-only copy of one user's ratings.
type Account struct {
	UserID          string             `json:"user_id"`
	PlatformRatings map[string]float64 `json:"platform_ratings"`
	UnifiedRating   float64            `json:"unified_rating"`
	CourseBonus     float64            `json:"course_bonus"`
	TotalRating     float64            `json:"total_rating"`
}

// Ranking is one leaderboard row.
type Ranking struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	UnifiedRating float64 `json:"unified_rating"`
	CourseBonus   float64 `json:"course_bonus"`
	TotalRating   float64 `json:"total_rating"`
}

// account holds one person's latest per-platform ratings and blended scores.
type account struct {
	userID          string
	platformRatings map[string]float64
	unifiedRating   float64
	courseBonus     float64
	// totalRating mirrors unifiedRating; the course bonus is reported next
	// to it and is not folded in.
	totalRating float64
}

func newAccount(userID string) *account {
	return &account{
		userID:          userID,
		platformRatings: make(map[string]float64),
	}
}

func (a *account) snapshot() Account {
	ratings := make(map[string]float64, len(a.platformRatings))
	for p, r := range a.platformRatings {
		ratings[p] = r
	}
	return Account{
		UserID:          a.userID,
		PlatformRatings: ratings,
		UnifiedRating:   a.unifiedRating,
		CourseBonus:     a.courseBonus,
		TotalRating:     a.totalRating,
	}
}
