// server.go - HTTP transport of the pool.
//
// Every pool entry point and query is exposed as JSON over gin. Failures carry a stable code
// (see errors.go) that Client maps back to the pool's sentinel errors.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"shielder/internal/metrics"
	"shielder/internal/shielder"
)

// TokenResolver returns the collaborator handle for a token id an admin registers.
type TokenResolver func(id shielder.Scalar) (shielder.FungibleToken, error)

// Options configure a Server.
type Options struct {
	// JWTSecret signs admin tokens. Empty disables the admin routes.
	JWTSecret []byte
	Resolver  TokenResolver
	Logger    zerolog.Logger
	// Middleware runs before every route, e.g. rate limiting.
	Middleware []gin.HandlerFunc
	// Health serves GET /health. Nil serves a static ok.
	Health gin.HandlerFunc
}

// Server is the gin front of a Pool.
type Server struct {
	pool   *shielder.Pool
	opts   Options
	engine *gin.Engine
}

func NewServer(pool *shielder.Pool, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{pool: pool, opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.observe())
	s.engine.Use(opts.Middleware...)
	s.routes()
	metrics.ObservePool(pool)
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	health := s.opts.Health
	if health == nil {
		health = func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	}
	s.engine.GET("/health", health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/root", s.handleRoot)
	v1.GET("/roots/:root", s.handleRootStatus)
	v1.GET("/path/:leaf", s.handlePath)
	v1.GET("/nullifiers/:nullifier", s.handleNullifier)
	v1.GET("/tokens", s.handleTokens)
	v1.GET("/tokens/:id", s.handleToken)
	v1.POST("/notes", s.handleRegister)
	v1.POST("/notes/update", s.handleUpdate)

	admin := v1.Group("/admin", adminAuth(s.opts.JWTSecret))
	admin.POST("/tokens", s.handleRegisterToken)
}

// observe records request counts and latencies per route template.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.failCommitted(c, err, nil)
}

// failCommitted reports err for a transition that still took leaf, when leaf is set.
func (s *Server) failCommitted(c *gin.Context, err error, leaf *uint32) {
	code, status := codeOf(err)
	ev := s.opts.Logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.opts.Logger.Error()
	}
	ev.Err(err).Str("path", c.Request.URL.Path).Str("code", code).Msg("request failed")
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code, LeafIndex: leaf})
}

func scalarParam(c *gin.Context, name string) (shielder.Scalar, error) {
	v, err := shielder.ParseScalar(c.Param(name))
	if err != nil {
		return shielder.Scalar{}, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, RootResponse{Root: s.pool.CurrentRoot(), NextLeafIndex: s.pool.NextLeafIndex()})
}

func (s *Server) handleRootStatus(c *gin.Context) {
	root, err := scalarParam(c, "root")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RootStatusResponse{Root: root, Known: s.pool.IsHistoricalRoot(root)})
}

func (s *Server) handlePath(c *gin.Context) {
	leaf, err := strconv.ParseUint(c.Param("leaf"), 10, 32)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: leaf: %v", errBadRequest, err))
		return
	}
	path, root, ok := s.pool.MerklePathWithRoot(uint32(leaf))
	if !ok {
		s.fail(c, fmt.Errorf("%w: %d", shielder.ErrLeafNotFound, leaf))
		return
	}
	c.JSON(http.StatusOK, PathResponse{LeafIndex: uint32(leaf), Path: path, Root: root})
}

func (s *Server) handleNullifier(c *gin.Context) {
	n, err := scalarParam(c, "nullifier")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NullifierResponse{Nullifier: n, Used: s.pool.ContainsNullifier(n)})
}

func (s *Server) handleTokens(c *gin.Context) {
	c.JSON(http.StatusOK, TokensResponse{Tokens: s.pool.RegisteredTokens()})
}

func (s *Server) handleToken(c *gin.Context) {
	id, err := scalarParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, t := range s.pool.RegisteredTokens() {
		if t == id {
			_, bound := s.pool.RegisteredToken(id)
			c.JSON(http.StatusOK, TokenResponse{ID: id, Bound: bound})
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
		Error: fmt.Sprintf("%s: %s", shielder.ErrTokenIDNotRegistered, id),
		Code:  "TOKEN_ID_NOT_REGISTERED",
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	st := shielder.CreationStatement{NewNote: req.NewNote, Tokens: req.Tokens}
	leaf, err := s.pool.Register(c.Request.Context(), st, req.Proof)
	s.committed(c, shielder.RelationCreation, leaf, err)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	leaf, err := s.pool.Update(c.Request.Context(), req.statement(), req.Proof)
	s.committed(c, shielder.RelationUpdate, leaf, err)
}

func (s *Server) committed(c *gin.Context, rel shielder.Relation, leaf uint32, err error) {
	code := "OK"
	if err != nil {
		code, _ = codeOf(err)
	}
	metrics.Transitions.WithLabelValues(rel.String(), code).Inc()
	if errors.Is(err, shielder.ErrSettlementIncomplete) {
		metrics.ObservePool(s.pool)
		s.failCommitted(c, err, &leaf)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	metrics.ObservePool(s.pool)
	c.JSON(http.StatusOK, LeafResponse{Success: true, LeafIndex: leaf, Root: s.pool.CurrentRoot()})
}

func (s *Server) handleRegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	caller := c.MustGet(callerKey).(shielder.Scalar)
	if s.opts.Resolver == nil {
		s.fail(c, errors.New("token registration is not configured"))
		return
	}
	handle, err := s.opts.Resolver(req.ID)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.pool.RegisterToken(c.Request.Context(), caller, req.ID, handle); err != nil {
		s.fail(c, err)
		return
	}
	metrics.ObservePool(s.pool)
	c.JSON(http.StatusOK, TokenResponse{ID: req.ID, Bound: true})
}
