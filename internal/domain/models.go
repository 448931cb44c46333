// internal/domain/models.go
package domain

// Access levels per database: 1 = read, 2 = read+write, 3 = read+write+migrate.
// Absent (0) means no access.
const (
	AccessNone        uint8 = 0
	AccessRead        uint8 = 1
	AccessReadWrite   uint8 = 2
	AccessFullMigrate uint8 = 3
)

// User is one entry of the user directory. UsernameHash is the stable lookup
// key (hex sha256 of the username); UsernamePasswordHash doubles as the
// HMAC signing secret shared with the client.
type User struct {
	Username             string
	UsernameHash         string
	UsernamePasswordHash string
	DatabaseAccess       map[string]uint8
}

// AccessRight returns the user's access level for dbName, 0 when absent.
func (u *User) AccessRight(dbName string) uint8 {
	return u.DatabaseAccess[dbName]
}
