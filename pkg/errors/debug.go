package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDetails are the server-side fields of a Postgres error, from either pgx or
// lib/pq.
type PGDetails struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain for logs and the payment audit trail.
type ErrorDump struct {
	TopMessage string     `json:"top_message"`
	Code       Code       `json:"code,omitempty"`
	Chain      []string   `json:"chain,omitempty"`
	Postgres   *PGDetails `json:"postgres,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Postgres: postgresDetails(err)}
	if coded := As(err); coded != nil {
		d.Code = coded.Code()
	}
	for link := err; link != nil; link = errors.Unwrap(link) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	return d
}

func postgresDetails(err error) *PGDetails {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return &PGDetails{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &PGDetails{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Summary is a single line such as "[internal] insert deliveries (pg 23505
// uq_subscription_deliveries_date)".
func (d ErrorDump) Summary() string {
	if d.TopMessage == "" {
		return ""
	}
	var b strings.Builder
	if d.Code != "" {
		b.WriteString("[" + string(d.Code) + "] ")
	}
	b.WriteString(d.TopMessage)
	if pg := d.Postgres; pg != nil {
		b.WriteString(" (pg " + pg.Code)
		if pg.Constraint != "" {
			b.WriteString(" " + pg.Constraint)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Fields are the log fields for d, all under the "error." prefix.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error.top": d.TopMessage}
	if d.Code != "" {
		fields["error.code"] = string(d.Code)
	}
	if len(d.Chain) > 0 {
		fields["error.chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		fields["error.pg_code"] = pg.Code
		fields["error.pg_constraint"] = pg.Constraint
		fields["error.pg_table"] = pg.Table
		fields["error.pg_detail"] = pg.Detail
		fields["error.pg_message"] = pg.Message
	}
	return fields
}
