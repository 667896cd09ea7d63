package domain

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func NewUser(id, username string) User {
	return User{
		ID:       id,
		Username: username,
	}
}

func (u User) IsValid() bool {
	return u.ID != ""
}

func (u User) String() string {
	return u.Username + "(" + u.ID + ")"
}
