// Package serfproto holds the wire envelope: a single protobuf message carrying
// either signed claims or a server error, plus the HMAC signing and verification
// that authenticates the encoded bytes.
//
// The messages are encoded by hand with protowire (see codec.go); the field tags
// are part of the wire contract and must not change.
package serfproto

// Iss identifies the issuer of a claims envelope.
type Iss int32

const (
	IssClient Iss = 0
	IssServer Iss = 1
)

// Sub identifies the intent of a claims envelope.
type Sub int32

const (
	SubData    Sub = 0
	SubFetch   Sub = 1
	SubMutate  Sub = 2
	SubMigrate Sub = 3
)

// ErrorSource classifies a ServerError.
type ErrorSource int32

const (
	ErrorSourceUndefined        ErrorSource = 0
	ErrorSourceDatabase         ErrorSource = 1
	ErrorSourceUserNotExist     ErrorSource = 2
	ErrorSourceUserNotAllowed   ErrorSource = 3
	ErrorSourceHeaderMissing    ErrorSource = 4
	ErrorSourceHeaderMalformed  ErrorSource = 5
	ErrorSourceResourceNotExist ErrorSource = 6
	ErrorSourceProtoPackage     ErrorSource = 7
)

// Request is the top-level envelope. Exactly one of Claims or Error is set.
type Request struct {
	Claims *Claims
	Error  *ServerError
}

// Claims is the authenticated block within an envelope.
type Claims struct {
	Iss Iss
	Sub Sub
	Dat Dat
	Iat uint64
	Exp uint64
}

// Dat is the typed payload of a claims envelope, one of QueryRequest,
// MigrationRequest, FetchResponse, MutationResponse or MigrationResponse.
type Dat interface {
	isDat()
}

// QueryRequest carries a parameterized read or write query.
type QueryRequest struct {
	Sql  string
	Args []*QueryArg
}

// MigrationRequest carries a named schema migration.
type MigrationRequest struct {
	Name string
	Sql  string
}

// FetchResponse carries the portable row array as an opaque blob.
type FetchResponse struct {
	Rows []byte
}

// MutationResponse carries the execution metadata of a write.
type MutationResponse struct {
	RowsAffected    uint64
	LastInsertRowID uint64
}

// MigrationResponse reports whether a migration was applied.
type MigrationResponse struct {
	Applied bool
}

func (*QueryRequest) isDat()      {}
func (*MigrationRequest) isDat()  {}
func (*FetchResponse) isDat()     {}
func (*MutationResponse) isDat()  {}
func (*MigrationResponse) isDat() {}

// ServerError is the error branch of an envelope.
type ServerError struct {
	Source  ErrorSource
	Message string
}

// QueryArg is a typed positional query parameter.
type QueryArg struct {
	Value ArgValue
}

// ArgValue is the tagged sum over int64, float64, string and bytes.
type ArgValue interface {
	isArgValue()
}

type Int64Value int64
type DoubleValue float64
type StringValue string
type BytesValue []byte

func (Int64Value) isArgValue()  {}
func (DoubleValue) isArgValue() {}
func (StringValue) isArgValue() {}
func (BytesValue) isArgValue()  {}

func Int64Arg(v int64) *QueryArg    { return &QueryArg{Value: Int64Value(v)} }
func DoubleArg(v float64) *QueryArg { return &QueryArg{Value: DoubleValue(v)} }
func StringArg(v string) *QueryArg  { return &QueryArg{Value: StringValue(v)} }
func BytesArg(v []byte) *QueryArg   { return &QueryArg{Value: BytesValue(v)} }

// BindValue returns the native Go value used for parameter binding.
// Type mapping: int64 -> INTEGER, float64 -> REAL, string -> TEXT, bytes -> BLOB.
func (a *QueryArg) BindValue() any {
	switch v := a.Value.(type) {
	case Int64Value:
		return int64(v)
	case DoubleValue:
		return float64(v)
	case StringValue:
		return string(v)
	case BytesValue:
		return []byte(v)
	default:
		return nil
	}
}
