// Package repository holds the MySQL implementations of the stores used by
// the matching and exchange layers.  Lookups that find nothing return
// apperr.NotFound; lost compare-and-set updates return apperr.ErrStale.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
)

// ErrEmailExists is returned by UserRepo.Create for a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// lookup maps sql.ErrNoRows to a not_found error and wraps anything else.
func lookup(err error, what string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s %v not found", what, id)
	}
	return eris.Wrapf(err, "load %s %v", what, id)
}

// affected returns apperr.ErrStale when a guarded update matched no row.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrStale
	}
	return nil
}
