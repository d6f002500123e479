// Пакет access — роли доступа к ресурсам и их сравнение.
// Роли упорядочены по рангу: owner(3) > editor(2) > viewer(1).
// Владелец ресурса (Resource.OwnerID) имеет неявную роль owner без записи
// в permission_grants.
package access

// Роли в порядке возрастания привилегий.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleOwner  = "owner"
)

// roleRank — ранг роли для сравнения.
// Чем выше ранг, тем больше привилегий.
var roleRank = map[string]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// HasRole проверяет, покрывает ли имеющаяся роль требуемую:
// rank(have) >= rank(need). Неизвестные роли имеют ранг 0.
func HasRole(have, need string) bool {
	return roleRank[have] >= roleRank[need]
}

// Rank возвращает числовой ранг роли; 0 для неизвестной роли.
func Rank(role string) int {
	return roleRank[role]
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// MaxRole возвращает роль с максимальными привилегиями из двух.
func MaxRole(a, b string) string {
	if roleRank[a] >= roleRank[b] {
		return a
	}
	return b
}
