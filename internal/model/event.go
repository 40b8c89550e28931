package model

// Event はクロークが稼働するイベントを表す。
// StartsAt、EndsAtはepoch msで、EndsAt >= StartsAtを満たす。
type Event struct {
	ID        string
	Name      string
	StartsAt  int64
	EndsAt    int64
	CreatedAt int64
	UpdatedAt *int64
}
