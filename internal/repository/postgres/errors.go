package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for a unique constraint conflict.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique conflict. Inserts
// use ON CONFLICT DO NOTHING, so this only fires on constraints the clause
// does not name.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
