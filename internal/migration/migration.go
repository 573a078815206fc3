// Package migration keeps the schema current on startup so local and
// self-hosted deployments work out of the box.
package migration

import (
	"errors"

	"gorm.io/gorm"

	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
)

func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(
		&orgdomain.Organization{},
	)
}
