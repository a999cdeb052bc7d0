package entity

// Role — именованная роль участника pull requestа.
type Role string

const (
	RoleAuthor     Role = "author"
	RoleReviewer   Role = "reviewer"
	RoleMaintainer Role = "maintainer"
)

// Participants — распределение ролей агрегата, зафиксированное при создании.
// Роль — это набор ссылок на identity, а не объект с поведением:
// авторизация — чистая функция (identity, роль).
type Participants struct {
	AuthorID     string
	ReviewerIDs  []string
	MaintainerID string
}

// IsReviewer — тест на членство в наборе ревьюверов.
func (p Participants) IsReviewer(id string) bool {
	for _, r := range p.ReviewerIDs {
		if r == id {
			return true
		}
	}
	return false
}

// HasRole сообщает, входит ли identity хотя бы в одну из перечисленных ролей.
func (p Participants) HasRole(id string, roles ...Role) bool {
	for _, role := range roles {
		switch role {
		case RoleAuthor:
			if id == p.AuthorID {
				return true
			}
		case RoleReviewer:
			if p.IsReviewer(id) {
				return true
			}
		case RoleMaintainer:
			if id == p.MaintainerID {
				return true
			}
		}
	}
	return false
}

// IsParticipant — членство в любой из трёх ролей (для read-only операций).
func (p Participants) IsParticipant(id string) bool {
	return p.HasRole(id, RoleAuthor, RoleReviewer, RoleMaintainer)
}

func (p Participants) clone() Participants {
	out := p
	out.ReviewerIDs = append([]string(nil), p.ReviewerIDs...)
	return out
}
