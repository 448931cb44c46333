package serfproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field tags. These pin the byte layout the signatures are computed over.
const (
	requestClaimsField = 1
	requestErrorField  = 2

	claimsIssField               = 1
	claimsSubField               = 2
	claimsFetchResponseField     = 3
	claimsMutationResponseField  = 4
	claimsQueryRequestField      = 5
	claimsMigrationRequestField  = 6
	claimsMigrationResponseField = 7
	claimsIatField               = 8
	claimsExpField               = 9

	queryRequestSqlField  = 1
	queryRequestArgsField = 2

	migrationRequestNameField = 1
	migrationRequestSqlField  = 2

	fetchResponseRowsField = 1

	mutationResponseRowsAffectedField    = 1
	mutationResponseLastInsertRowIDField = 2

	migrationResponseAppliedField = 1

	queryArgInt64Field  = 1
	queryArgDoubleField = 2
	queryArgStringField = 3
	queryArgBytesField  = 4

	serverErrorSourceField  = 1
	serverErrorMessageField = 2
)

// Marshal encodes the envelope. Encoding is deterministic: fields are written
// in tag order and default scalar values are omitted, so equal envelopes yield
// equal bytes and therefore equal signatures.
func (r *Request) Marshal() []byte {
	var b []byte
	if r.Claims != nil {
		b = protowire.AppendTag(b, requestClaimsField, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Claims.marshal())
	}
	if r.Error != nil {
		b = protowire.AppendTag(b, requestErrorField, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Error.marshal())
	}
	return b
}

func (c *Claims) marshal() []byte {
	var b []byte
	if c.Iss != 0 {
		b = protowire.AppendTag(b, claimsIssField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Iss))
	}
	if c.Sub != 0 {
		b = protowire.AppendTag(b, claimsSubField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Sub))
	}
	switch d := c.Dat.(type) {
	case *FetchResponse:
		b = protowire.AppendTag(b, claimsFetchResponseField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.marshal())
	case *MutationResponse:
		b = protowire.AppendTag(b, claimsMutationResponseField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.marshal())
	case *QueryRequest:
		b = protowire.AppendTag(b, claimsQueryRequestField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.marshal())
	case *MigrationRequest:
		b = protowire.AppendTag(b, claimsMigrationRequestField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.marshal())
	case *MigrationResponse:
		b = protowire.AppendTag(b, claimsMigrationResponseField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.marshal())
	}
	if c.Iat != 0 {
		b = protowire.AppendTag(b, claimsIatField, protowire.VarintType)
		b = protowire.AppendVarint(b, c.Iat)
	}
	if c.Exp != 0 {
		b = protowire.AppendTag(b, claimsExpField, protowire.VarintType)
		b = protowire.AppendVarint(b, c.Exp)
	}
	return b
}

func (q *QueryRequest) marshal() []byte {
	var b []byte
	if q.Sql != "" {
		b = protowire.AppendTag(b, queryRequestSqlField, protowire.BytesType)
		b = protowire.AppendString(b, q.Sql)
	}
	for _, arg := range q.Args {
		b = protowire.AppendTag(b, queryRequestArgsField, protowire.BytesType)
		b = protowire.AppendBytes(b, arg.marshal())
	}
	return b
}

func (m *MigrationRequest) marshal() []byte {
	var b []byte
	if m.Name != "" {
		b = protowire.AppendTag(b, migrationRequestNameField, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	if m.Sql != "" {
		b = protowire.AppendTag(b, migrationRequestSqlField, protowire.BytesType)
		b = protowire.AppendString(b, m.Sql)
	}
	return b
}

func (f *FetchResponse) marshal() []byte {
	var b []byte
	if len(f.Rows) > 0 {
		b = protowire.AppendTag(b, fetchResponseRowsField, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Rows)
	}
	return b
}

func (m *MutationResponse) marshal() []byte {
	var b []byte
	if m.RowsAffected != 0 {
		b = protowire.AppendTag(b, mutationResponseRowsAffectedField, protowire.VarintType)
		b = protowire.AppendVarint(b, m.RowsAffected)
	}
	if m.LastInsertRowID != 0 {
		b = protowire.AppendTag(b, mutationResponseLastInsertRowIDField, protowire.VarintType)
		b = protowire.AppendVarint(b, m.LastInsertRowID)
	}
	return b
}

func (m *MigrationResponse) marshal() []byte {
	var b []byte
	if m.Applied {
		b = protowire.AppendTag(b, migrationResponseAppliedField, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func (a *QueryArg) marshal() []byte {
	var b []byte
	switch v := a.Value.(type) {
	case Int64Value:
		b = protowire.AppendTag(b, queryArgInt64Field, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case DoubleValue:
		b = protowire.AppendTag(b, queryArgDoubleField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(float64(v)))
	case StringValue:
		b = protowire.AppendTag(b, queryArgStringField, protowire.BytesType)
		b = protowire.AppendString(b, string(v))
	case BytesValue:
		b = protowire.AppendTag(b, queryArgBytesField, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(v))
	}
	return b
}

func (e *ServerError) marshal() []byte {
	var b []byte
	if e.Source != 0 {
		b = protowire.AppendTag(b, serverErrorSourceField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Source))
	}
	if e.Message != "" {
		b = protowire.AppendTag(b, serverErrorMessageField, protowire.BytesType)
		b = protowire.AppendString(b, e.Message)
	}
	return b
}

// UnmarshalRequest decodes an envelope. Unknown fields are skipped.
func UnmarshalRequest(b []byte) (*Request, error) {
	r := &Request{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == requestClaimsField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			claims, err := unmarshalClaims(v)
			if err != nil {
				return nil, err
			}
			r.Claims = claims
			b = b[n:]
		case num == requestErrorField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			serverErr, err := unmarshalServerError(v)
			if err != nil {
				return nil, err
			}
			r.Error = serverErr
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

func unmarshalClaims(b []byte) (*Claims, error) {
	c := &Claims{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == claimsIssField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.Iss = Iss(v)
			b = b[n:]
		case num == claimsSubField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.Sub = Sub(v)
			b = b[n:]
		case num == claimsIatField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.Iat = v
			b = b[n:]
		case num == claimsExpField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.Exp = v
			b = b[n:]
		case typ == protowire.BytesType && num >= claimsFetchResponseField && num <= claimsMigrationResponseField:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dat, err := unmarshalDat(num, v)
			if err != nil {
				return nil, err
			}
			c.Dat = dat
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return c, nil
}

func unmarshalDat(num protowire.Number, b []byte) (Dat, error) {
	switch num {
	case claimsFetchResponseField:
		return unmarshalFetchResponse(b)
	case claimsMutationResponseField:
		return unmarshalMutationResponse(b)
	case claimsQueryRequestField:
		return unmarshalQueryRequest(b)
	case claimsMigrationRequestField:
		return unmarshalMigrationRequest(b)
	case claimsMigrationResponseField:
		return unmarshalMigrationResponse(b)
	}
	return nil, fmt.Errorf("unknown dat field %d", num)
}

func unmarshalQueryRequest(b []byte) (*QueryRequest, error) {
	q := &QueryRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == queryRequestSqlField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			q.Sql = v
			b = b[n:]
		case num == queryRequestArgsField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			arg, err := unmarshalQueryArg(v)
			if err != nil {
				return nil, err
			}
			q.Args = append(q.Args, arg)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return q, nil
}

func unmarshalMigrationRequest(b []byte) (*MigrationRequest, error) {
	m := &MigrationRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == migrationRequestNameField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Name = v
			b = b[n:]
		case num == migrationRequestSqlField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Sql = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func unmarshalFetchResponse(b []byte) (*FetchResponse, error) {
	f := &FetchResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		if num == fetchResponseRowsField && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.Rows = append([]byte(nil), v...)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return f, nil
}

func unmarshalMutationResponse(b []byte) (*MutationResponse, error) {
	m := &MutationResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == mutationResponseRowsAffectedField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RowsAffected = v
			b = b[n:]
		case num == mutationResponseLastInsertRowIDField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.LastInsertRowID = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func unmarshalMigrationResponse(b []byte) (*MigrationResponse, error) {
	m := &MigrationResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		if num == migrationResponseAppliedField && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Applied = v != 0
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return m, nil
}

func unmarshalQueryArg(b []byte) (*QueryArg, error) {
	a := &QueryArg{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == queryArgInt64Field && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Value = Int64Value(int64(v))
			b = b[n:]
		case num == queryArgDoubleField && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Value = DoubleValue(math.Float64frombits(v))
			b = b[n:]
		case num == queryArgStringField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Value = StringValue(v)
			b = b[n:]
		case num == queryArgBytesField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Value = BytesValue(append([]byte(nil), v...))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return a, nil
}

func unmarshalServerError(b []byte) (*ServerError, error) {
	e := &ServerError{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == serverErrorSourceField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Source = ErrorSource(v)
			b = b[n:]
		case num == serverErrorMessageField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Message = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return e, nil
}
