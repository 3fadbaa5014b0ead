package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DriverError is what a database driver reported underneath an error chain.
type DriverError struct {
	Driver     string `json:"driver"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Fields flattens the driver error into log fields prefixed with db_.
func (d *DriverError) Fields() map[string]any {
	if d == nil {
		return nil
	}
	fields := map[string]any{"db_driver": d.Driver, "db_code": d.Code}
	for key, value := range map[string]string{
		"db_constraint": d.Constraint,
		"db_table":      d.Table,
		"db_column":     d.Column,
		"db_detail":     d.Detail,
		"db_message":    d.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

// ErrorDump is the log-only view of an error: never serialized to clients.
type ErrorDump struct {
	TopMessage string       `json:"top_message"`
	Code       Code         `json:"code,omitempty"`
	Chain      []string     `json:"chain,omitempty"`
	DB         *DriverError `json:"db,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), DB: driverError(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// driverError finds the first postgres (pgx or lib/pq) or sqlite error in
// the chain.
func driverError(err error) *DriverError {
	if pgErr, ok := asType[*pgconn.PgError](err); ok {
		return &DriverError{Driver: "pgx", Code: pgErr.Code, Constraint: pgErr.ConstraintName,
			Table: pgErr.TableName, Column: pgErr.ColumnName, Detail: pgErr.Detail, Message: pgErr.Message}
	}
	if pqErr, ok := asType[*pq.Error](err); ok {
		return &DriverError{Driver: "pq", Code: string(pqErr.Code), Constraint: pqErr.Constraint,
			Table: pqErr.Table, Column: pqErr.Column, Detail: pqErr.Detail, Message: pqErr.Message}
	}
	if liteErr, ok := asType[sqlite3.Error](err); ok {
		return &DriverError{Driver: "sqlite3", Code: strconv.Itoa(int(liteErr.ExtendedCode)), Message: liteErr.Error()}
	}
	return nil
}

func asType[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
