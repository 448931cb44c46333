// api/handlers/database_handler.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rikardbq/serf/internal/core"
	"github.com/rikardbq/serf/internal/domain"
	"github.com/rikardbq/serf/internal/logger"
	"github.com/rikardbq/serf/internal/serfproto"
	"github.com/rikardbq/serf/internal/storage"
)

var customLog = logger.NewLogger()

const protobufContentType = "application/protobuf"

// Request header names. "0" carries the user hash, "1" the body signature.
const (
	headerUserHash  = "0"
	headerSignature = "1"
)

// DatabaseHandler is the request dispatcher: it extracts the transport
// headers, resolves the user, verifies and decodes the envelope, acquires the
// target database pool and dispatches to the subject handler. Every outcome
// past user resolution is answered with a signed envelope.
type DatabaseHandler struct {
	Directory *storage.Directory
	Registry  *storage.Registry
	clock     func() time.Time
}

func NewDatabaseHandler(directory *storage.Directory, registry *storage.Registry) *DatabaseHandler {
	return &DatabaseHandler{
		Directory: directory,
		Registry:  registry,
		clock:     time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (h *DatabaseHandler) WithClock(clock func() time.Time) *DatabaseHandler {
	h.clock = clock
	return h
}

// HandleDatabasePost serves fetch and mutate envelopes.
func (h *DatabaseHandler) HandleDatabasePost(c *gin.Context) {
	h.handle(c, false)
}

// HandleMigrationPost serves migrate envelopes on the migration route.
func (h *DatabaseHandler) HandleMigrationPost(c *gin.Context) {
	h.handle(c, true)
}

func (h *DatabaseHandler) handle(c *gin.Context, migrationRoute bool) {
	userHash, hdrErr := headerValue(c, headerUserHash)
	if hdrErr != nil {
		abortPlainText(c, hdrErr)
		return
	}
	signature, hdrErr := headerValue(c, headerSignature)
	if hdrErr != nil {
		abortPlainText(c, hdrErr)
		return
	}
	if c.ContentType() == "" {
		abortPlainText(c, core.HeaderMissingError())
		return
	}
	if c.ContentType() != protobufContentType {
		abortPlainText(c, core.HeaderMalformedError())
		return
	}

	user, ok := h.Directory.Get(userHash)
	if !ok {
		// No user means no secret to sign with; answer in plain text.
		c.String(http.StatusUnauthorized, core.MsgUserNotExist)
		c.Abort()
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.abortSigned(c, user, core.NewError(serfproto.ErrorSourceUndefined, err.Error()))
		return
	}

	request, err := serfproto.NewVerifier().
		WithSignature(signature).
		WithSecret(user.UsernamePasswordHash).
		WithIssuer(serfproto.IssClient).
		WithClock(h.clock).
		Build().
		Verify(body)
	if err != nil {
		h.abortSigned(c, user, core.ProtoPackageError(err.Error()))
		return
	}

	dbName := c.Param("database")
	pool, err := h.Registry.GetOrOpen(c.Request.Context(), dbName)
	if err != nil {
		h.abortSigned(c, user, core.ResourceNotExistError())
		return
	}

	claims := request.Claims
	if migrationRoute != (claims.Sub == serfproto.SubMigrate) {
		h.abortSigned(c, user, core.UndefinedError())
		return
	}

	queryHandler := core.NewQueryHandler(user.AccessRight(dbName), user.UsernamePasswordHash, pool).
		WithClock(h.clock)

	pkg, err := core.GetProtoPackageResult(c.Request.Context(), claims, queryHandler)
	if err != nil {
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.UndefinedError()
		}
		h.abortSigned(c, user, coreErr)
		return
	}

	respondPackage(c, http.StatusOK, pkg)
}

// abortSigned answers with an error envelope signed with the user's secret.
func (h *DatabaseHandler) abortSigned(c *gin.Context, user *domain.User, coreErr *core.Error) {
	pkg, err := serfproto.NewPackage().
		WithError(coreErr.Proto()).
		WithClock(h.clock).
		Sign(user.UsernamePasswordHash)
	if err != nil {
		customLog.Warnf("Handler: Failed to sign error envelope: %v", err)
		c.String(http.StatusInternalServerError, core.MsgUndefined)
		c.Abort()
		return
	}

	respondPackage(c, statusForError(coreErr.Source), pkg)
	c.Abort()
}

func respondPackage(c *gin.Context, status int, pkg *serfproto.ProtoPackage) {
	c.Header(headerUserHash, pkg.Signature)
	c.Data(status, protobufContentType, pkg.Data)
}

func statusForError(source serfproto.ErrorSource) int {
	switch source {
	case serfproto.ErrorSourceUserNotAllowed:
		return http.StatusForbidden
	case serfproto.ErrorSourceResourceNotExist:
		return http.StatusNotFound
	case serfproto.ErrorSourceUserNotExist:
		return http.StatusUnauthorized
	case serfproto.ErrorSourceHeaderMissing, serfproto.ErrorSourceHeaderMalformed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// headerValue extracts a required header, distinguishing absent from
// non-ASCII values.
func headerValue(c *gin.Context, name string) (string, *core.Error) {
	value := c.GetHeader(name)
	if value == "" {
		return "", core.HeaderMissingError()
	}
	for i := 0; i < len(value); i++ {
		if value[i] > 127 {
			return "", core.HeaderMalformedError()
		}
	}
	return value, nil
}

func abortPlainText(c *gin.Context, coreErr *core.Error) {
	c.String(statusForError(coreErr.Source), coreErr.Message)
	c.Abort()
}
