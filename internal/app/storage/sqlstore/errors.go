package sqlstore

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
)

// uniqueFields maps constraint names (postgres) and "table.column" targets
// (sqlite) to the field reported to callers.
var uniqueFields = map[string]string{
	"authors_name_key":           "name",
	"authors.name":               "name",
	"categories_name_parent_key": "name",
	"categories.name":            "name",
	"books_isbn_key":             "isbn",
	"books.isbn":                 "isbn",
	"users_username_key":         "username",
	"users.username":             "username",
	"users_email_key":            "email",
	"users.email":                "email",
	"carts_user_id_key":          "user_id",
	"carts.user_id":              "user_id",
}

const pqUniqueViolation = "23505"

// mapError turns unique violations into *storage.DuplicateError. values holds
// the candidate value per field so the error can echo it back.
func mapError(err error, values map[string]string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return duplicate(pqErr.Constraint, values, err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(liteErr.Error(), "UNIQUE constraint failed") {
		return duplicate(sqliteTarget(liteErr.Error()), values, err)
	}
	return err
}

func duplicate(target string, values map[string]string, cause error) error {
	field, ok := uniqueFields[target]
	if !ok {
		if target == "" {
			return cause
		}
		field = target
	}
	return &storage.DuplicateError{Field: field, Value: values[field]}
}

// sqliteTarget extracts the first "table.column" from
// "UNIQUE constraint failed: table.column[, table.column]".
func sqliteTarget(msg string) string {
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len(marker):]
	if end := strings.IndexAny(rest, ", )"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
