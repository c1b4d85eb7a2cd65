package domain

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username}
}

func (u User) Validate() error {
	if u.Username == "" {
		return Invalid("username is required")
	}
	return nil
}
