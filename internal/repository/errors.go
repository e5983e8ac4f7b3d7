// Package repository holds the MySQL data access code. Driver errors are
// translated here into the sentinel values below so that services can
// tell a constraint violation from any other failure without knowing
// about MySQL error numbers.
package repository

import (
	"errors"
	"regexp"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert violates a primary or unique
// key. Services translate it into their own domain kind.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrForeignKey is returned when an insert references a parent row that
// does not exist.
var ErrForeignKey = errors.New("foreign key violation")

// Foreign keys of the favorite table, as named in the schema.
const (
	FavoriteProfileFK = "fk_favorite_profile"
	FavoriteMovieFK   = "fk_favorite_movie"
)

// ForeignKeyError is a foreign key violation together with the name of the
// constraint that fired. It matches ErrForeignKey under errors.Is.
type ForeignKeyError struct {
	Constraint string // empty when the server message did not name it
	Err        error
}

func (e *ForeignKeyError) Error() string {
	if e.Constraint == "" {
		return ErrForeignKey.Error() + ": " + e.Err.Error()
	}
	return ErrForeignKey.Error() + " (" + e.Constraint + "): " + e.Err.Error()
}

func (e *ForeignKeyError) Unwrap() error { return e.Err }

func (e *ForeignKeyError) Is(target error) bool { return target == ErrForeignKey }

// fkConstraint pulls the constraint name out of a 1452 message such as
// "... a foreign key constraint fails (`db`.`favorite`, CONSTRAINT `fk_favorite_movie` FOREIGN KEY ...".
var fkConstraint = regexp.MustCompile("CONSTRAINT `([^`]+)`")

const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlNoReferencedRow2 = 1216
)

// translate maps MySQL constraint errors onto the package sentinels and
// leaves everything else untouched.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return errors.Join(ErrDuplicateKey, err)
	case mysqlNoReferencedRow, mysqlNoReferencedRow2:
		fk := &ForeignKeyError{Err: err}
		if m := fkConstraint.FindStringSubmatch(me.Message); m != nil {
			fk.Constraint = m[1]
		}
		return fk
	}
	return err
}
