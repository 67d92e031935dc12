// Package model defines shared types for the gateway.
package model

import (
	"encoding/json"
	"fmt"
)

// FilterOp is a PostgREST comparison operator.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNeq FilterOp = "neq"
	OpIn  FilterOp = "in"
)

// Filter is one predicate on a column. Eq and Neq use Values[0]; In uses all of Values.
type Filter struct {
	Column string
	Op     FilterOp
	Values []string
}

// Eq returns a column = value filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Values: []string{value}}
}

// Neq returns a column <> value filter.
func Neq(column, value string) Filter {
	return Filter{Column: column, Op: OpNeq, Values: []string{value}}
}

// In returns a column IN (values...) filter.
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Order sorts results by one column.
type Order struct {
	Column    string
	Ascending bool
}

// QuerySpec describes one read against a remote table.
type QuerySpec struct {
	Table   string
	Columns []string // empty selects every column
	Filters []Filter
	Order   *Order
	Limit   int // 0 means no limit
	Single  bool
}

// Result is a successful store response. Data is the raw JSON body.
type Result struct {
	Status     int
	StatusText string
	Data       json.RawMessage
}

// StoreError is a failure reported by the store itself.
// Status is the HTTP status of the store response and may be 0 when unknown.
type StoreError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: status %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("store: status %d: %s", e.Status, e.Message)
}

// ErrorEnvelope is the JSON body sent for every failed request.
type ErrorEnvelope struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// Message is the body accepted by POST /message. Fields are forwarded unchanged.
type Message struct {
	Message json.RawMessage `json:"message,omitempty"`
	Sender  json.RawMessage `json:"sender,omitempty"`
}
