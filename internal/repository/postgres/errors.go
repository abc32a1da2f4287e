// internal/repository/postgres/errors.go
package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"tradedesk-ledger/internal/util"
)

// classify tags infrastructure failures with util.ErrStoreUnavailable so the
// caller can tell them apart from a bad query.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention
			return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
		}
		switch pqErr.Code {
		case "40001", "40P01": // serialization failure, deadlock detected
			return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// getOne wraps the error of a single-row read, mapping sql.ErrNoRows to util.ErrNotFound.
func getOne(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", util.ErrNotFound, what)
	}
	return fmt.Errorf("failed to get %s: %w", what, classify(err))
}

// expectOneRow checks that an UPDATE touched exactly one row.
func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for %s: %w", what, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", util.ErrNotFound, what)
	}
	return nil
}
