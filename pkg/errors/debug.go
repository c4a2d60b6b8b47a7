package errors

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// maxDumpChain caps how many causes a dump lists; joined mint failures can
// carry one cause per pending record.
const maxDumpChain = 16

// ErrorDump flattens an error into log fields: the typed code, the cause chain
// and whatever the database, the chain RPC or Stripe attached to it.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGDetail     string

	RPCCode int
	RPCData string

	StripeType      string
	StripeCode      string
	StripeRequestID string
	StripeStatus    int

	Step   string
	TxHash string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}

	if te := As(err); te != nil {
		d.Code = te.Code()
		if details, ok := te.Details().(map[string]any); ok {
			d.Step, _ = details["step"].(string)
			d.TxHash, _ = details["transaction_hash"].(string)
		}
	}

	walk(err, func(e error) bool {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
		return len(d.Chain) < maxDumpChain
	})

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		d.RPCCode = rpcErr.ErrorCode()
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
			d.RPCData = fmt.Sprint(dataErr.ErrorData())
		}
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		d.StripeType = string(stripeErr.Type)
		d.StripeCode = string(stripeErr.Code)
		d.StripeRequestID = stripeErr.RequestID
		d.StripeStatus = stripeErr.HTTPStatusCode
	}
	return d
}

// walk visits err and its causes depth first, following both Unwrap forms.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return true
	}
	if !visit(err) {
		return false
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, visit) {
				return false
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	}
	return true
}

// Fields returns the populated parts of the dump keyed for structured logs.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	put := func(key string, value any) {
		switch v := value.(type) {
		case string:
			if v == "" {
				return
			}
		case int:
			if v == 0 {
				return
			}
		case []string:
			if len(v) == 0 {
				return
			}
		}
		fields[key] = value
	}
	put("error_code", string(d.Code))
	put("error_chain", d.Chain)
	put("pg_code", d.PGCode)
	put("pg_constraint", d.PGConstraint)
	put("pg_table", d.PGTable)
	put("pg_detail", d.PGDetail)
	put("rpc_code", d.RPCCode)
	put("rpc_data", d.RPCData)
	put("stripe_type", d.StripeType)
	put("stripe_code", d.StripeCode)
	put("stripe_request_id", d.StripeRequestID)
	put("stripe_status", d.StripeStatus)
	put("step", d.Step)
	put("transaction_hash", d.TxHash)
	return fields
}
