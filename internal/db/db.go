package db

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/jinzhu/gorm/dialects/sqlite"   // SQLite driver for local runs and tests

	"shortcut-service/internal/links"
)

// Link is the persisted form of links.Link.
type Link struct {
	ID        string `gorm:"primary_key;type:varchar(36)"`
	Code      string `gorm:"type:varchar(32);unique_index;not null"`
	Target    string `gorm:"type:text;not null"`
	Visits    int64  `gorm:"not null"`
	Owner     string `gorm:"type:varchar(255);index;not null"`
	Status    string `gorm:"type:varchar(16);index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name regardless of gorm's pluralization.
func (Link) TableName() string {
	return "links"
}

func fromCore(l *links.Link) *Link {
	return &Link{
		ID:        l.ID,
		Code:      l.Code,
		Target:    l.Target,
		Visits:    l.Visits,
		Owner:     l.Owner,
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// ToCore converts the row into the domain type.
func (m *Link) ToCore() *links.Link {
	return &links.Link{
		ID:        m.ID,
		Code:      m.Code,
		Target:    m.Target,
		Visits:    m.Visits,
		Owner:     m.Owner,
		Status:    links.Status(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// InitDB opens a connection with the given gorm dialect and migrates the schema.
func InitDB(driver, dataSourceName string) (*gorm.DB, error) {
	conn, err := gorm.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// One connection: ":memory:" databases are per connection and sqlite
		// serializes writers anyway.
		conn.DB().SetMaxOpenConns(1)
	}

	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates the links table.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&Link{}).Error; err != nil {
		return fmt.Errorf("migrate links: %w", err)
	}
	return nil
}
