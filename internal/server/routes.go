package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/msgwire/internal/auth"
	"github.com/danmuck/msgwire/internal/observability"
	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/mapping"
	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/store"
)

const (
	contentTypeBinary = "application/octet-stream"
	contentTypeText   = "text/plain; charset=utf-8"
)

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"schemas": len(s.codec.Schemas()),
		})
	})
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := s.router.Group("/v1")
	v1.GET("/schemas", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"schemas": s.codec.Schemas()})
	})
	v1.GET("/schemas/:schema", s.describeSchema)
	v1.POST("/schemas/:schema/validate", s.validate)
	v1.POST("/schemas/:schema/encode", s.encode)
	v1.POST("/schemas/:schema/decode", s.decode)

	if s.store == nil || s.authn == nil {
		return
	}
	contexts := v1.Group("/contexts", s.requireSubject())
	contexts.GET("/:schema", s.listContexts)
	contexts.PUT("/:schema/:id", s.putContext)
	contexts.GET("/:schema/:id", s.getContext)
	contexts.DELETE("/:schema/:id", s.deleteContext)
}

type fieldView struct {
	Name        string `json:"name"`
	Number      int32  `json:"number"`
	Kind        string `json:"kind"`
	Cardinality string `json:"cardinality"`
	Message     string `json:"message,omitempty"`
}

func (s *Server) describeSchema(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	fields := make([]fieldView, 0, sc.Len())
	for _, f := range sc.Fields() {
		view := fieldView{
			Name:        f.Name,
			Number:      int32(f.Number),
			Kind:        f.Kind.String(),
			Cardinality: f.Cardinality.String(),
		}
		if f.Message != nil {
			view.Message = f.Message.Name()
		}
		fields = append(fields, view)
	}
	c.JSON(http.StatusOK, gin.H{"name": sc.Name(), "fields": fields})
}

func (s *Server) validate(c *gin.Context) {
	sc, m, ok := s.readMessage(c)
	if !ok {
		return
	}
	issues, err := s.codec.Validate(sc.Name(), m)
	if err != nil {
		s.fail(c, err)
		return
	}
	if issues == nil {
		issues = protocol.ValidationErrors{}
	}
	c.JSON(http.StatusOK, gin.H{"valid": len(issues) == 0, "issues": issues})
}

func (s *Server) encode(c *gin.Context) {
	sc, m, ok := s.readMessage(c)
	if !ok {
		return
	}
	b, err := s.codec.Encode(sc.Name(), m)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeBinary, b)
}

func (s *Server) decode(c *gin.Context) {
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	m, err := s.codec.Decode(sc.Name(), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, sc, m, body)
}

func (s *Server) listContexts(c *gin.Context) {
	name := c.Param("schema")
	subject := c.GetString(observability.SubjectKey)
	ids := make([]string, 0)
	for _, k := range s.store.Keys(name) {
		if auth.Authorize(subject, k.ID) == nil {
			ids = append(ids, k.ID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"schema": name, "ids": ids})
}

func (s *Server) putContext(c *gin.Context) {
	if !s.authorize(c) {
		return
	}
	sc, m, ok := s.readMessage(c)
	if !ok {
		return
	}
	b, err := s.codec.Encode(sc.Name(), m)
	if err != nil {
		s.fail(c, err)
		return
	}
	key := store.Key{Schema: sc.Name(), ID: c.Param("id")}
	if err := s.store.Put(key, b); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": key.Schema, "id": key.ID, "bytes": len(b)})
}

func (s *Server) getContext(c *gin.Context) {
	if !s.authorize(c) {
		return
	}
	sc, ok := s.lookup(c)
	if !ok {
		return
	}
	b, err := s.store.Get(store.Key{Schema: sc.Name(), ID: c.Param("id")})
	if err != nil {
		s.fail(c, err)
		return
	}
	m, err := s.codec.Decode(sc.Name(), b)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, sc, m, b)
}

func (s *Server) deleteContext(c *gin.Context) {
	if !s.authorize(c) {
		return
	}
	if err := s.store.Delete(store.Key{Schema: c.Param("schema"), ID: c.Param("id")}); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// render writes m as JSON, or as raw bytes or text when ?format asks.
func (s *Server) render(c *gin.Context, sc *schema.Schema, m protocol.Message, raw []byte) {
	switch c.DefaultQuery("format", "json") {
	case "binary":
		c.Data(http.StatusOK, contentTypeBinary, raw)
	case "text":
		c.Data(http.StatusOK, contentTypeText, []byte(protocol.Format(sc, m)))
	case "json":
		c.JSON(http.StatusOK, mapping.ToNative(sc, m))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, binary or text"})
	}
}

func (s *Server) requireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var subject string
			subject, err = s.authn.Subject(token)
			if err == nil {
				c.Set(observability.SubjectKey, subject)
				c.Next()
				return
			}
		}
		c.Header("WWW-Authenticate", `Bearer realm="msgwire"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	}
}

// authorize applies the ownership rule to the :id of the request.
func (s *Server) authorize(c *gin.Context) bool {
	if err := auth.Authorize(c.GetString(observability.SubjectKey), c.Param("id")); err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

func (s *Server) lookup(c *gin.Context) (*schema.Schema, bool) {
	sc, err := s.codec.Schema(c.Param("schema"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sc, true
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return nil, false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return body, true
}

// readMessage reads a JSON or YAML body into a message of the route schema.
func (s *Server) readMessage(c *gin.Context) (*schema.Schema, protocol.Message, bool) {
	sc, ok := s.lookup(c)
	if !ok {
		return nil, nil, false
	}
	body, ok := s.readBody(c)
	if !ok {
		return nil, nil, false
	}
	var m protocol.Message
	var err error
	switch c.ContentType() {
	case "application/yaml", "application/x-yaml", "text/yaml":
		m, err = mapping.FromYAML(sc, body)
	default:
		m, err = mapping.FromJSON(sc, body)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return sc, m, true
}

// fail maps an error to its status code.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	if issues, ok := protocol.AsValidationErrors(err); ok {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "issues": issues})
		return
	}
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "offset": de.Offset, "path": de.Path})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schema.ErrUnknownSchema), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
