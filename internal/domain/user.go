package domain

// UserRecord — запись коллекции users в хранилище (профиль участника гильдии).
type UserRecord struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"` // Серверный ник
	Username    string `json:"username,omitempty"`    // Глобальное имя аккаунта
}

// Name выбирает displayName, затем username, затем синтетическое имя.
func (u UserRecord) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return FallbackName(u.UserID)
}
