package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// IsUniqueViolation はerrが一意制約違反かを判定する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

// 外部キー列名
const (
	ColumnWriteupID = "writeup_id"
	ColumnUserID    = "user_id"
)

// IsForeignKeyViolation はerrが外部キー制約違反かを判定する。
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}

// IsForeignKeyViolationOn はerrがcolumn列の外部キー制約違反かを判定する。
// 制約名はPostgreSQLの既定の命名 <table>_<column>_fkey を前提とする。
func IsForeignKeyViolationOn(err error, column string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgForeignKeyViolation {
		return false
	}
	return strings.HasSuffix(pqErr.Constraint, "_"+column+"_fkey")
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
