package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/accounts/internal/db"
)

// DBOptions holds the connection flags shared by every subcommand.
type DBOptions struct {
	Driver     string
	Connection string
}

func (o *DBOptions) open() (*sqlx.DB, error) {
	if o.Connection == "" {
		return nil, fmt.Errorf("no database connection configured")
	}
	return db.Init(o.Driver, o.Connection)
}

// withDB opens the database, applies pending migrations when migrate is set,
// and closes it after fn returns.
func (o *DBOptions) withDB(migrate bool, fn func(*sqlx.DB) error) error {
	database, err := o.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close(database)
	}()

	if migrate {
		err = db.RunMigrations(database.DB, o.Driver)
		if err != nil {
			return err
		}
	}
	return fn(database)
}
