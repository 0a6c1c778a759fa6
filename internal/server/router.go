package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evanmar/deployr/internal/history"
	"github.com/evanmar/deployr/internal/metrics"
	"github.com/evanmar/deployr/internal/supervisor"
)

// Manager is the subset of runner operations the HTTP API exposes.
type Manager interface {
	Deploy(ctx context.Context, name, message string, skipPublish bool) (supervisor.Report, error)
	Restart(ctx context.Context, name string) (supervisor.RestartResult, error)
	Stop(ctx context.Context, name string) (supervisor.StopResult, error)
	Status(ctx context.Context, name string) (supervisor.Status, error)
	Verify(ctx context.Context, name string) (supervisor.HealthResult, error)
	History(ctx context.Context, name string, limit int) ([]history.Record, error)
}

// Router provides embeddable HTTP handlers for driving deploys.
// Endpoints:
//   POST {basePath}/deploy    query: name=... body: {"message":"...","skip_publish":bool} (body optional)
//   POST {basePath}/restart   query: name=...
//   POST {basePath}/stop      query: name=...
//   GET  {basePath}/status    query: name=...
//   GET  {basePath}/verify    query: name=...
//   GET  {basePath}/history   query: name=...&limit=50
//   GET  /healthz
//   GET  /metrics
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	mgr      Manager
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/deploy, /api/stop, /api/status.
func NewRouter(mgr Manager, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{mgr: mgr, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/deploy", r.handleDeploy)
	group.POST("/restart", r.handleRestart)
	group.POST("/stop", r.handleStop)
	group.GET("/status", r.handleStatus)
	group.GET("/verify", r.handleVerify)
	group.GET("/history", r.handleHistory)
	g.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, okResp{OK: true}) })
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via the returned http.Server's Close or Shutdown.
func NewServer(addr, basePath string, mgr Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // deploys can outlive any sane write deadline
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type deployReq struct {
	Message     string `json:"message"`
	SkipPublish bool   `json:"skip_publish"`
}

// serveOpError maps runner errors to HTTP codes: transport failures are
// upstream faults, everything else is a bad request.
func serveOpError(c *gin.Context, err error) {
	code := http.StatusBadRequest
	if supervisor.IsConnectionError(err) {
		code = http.StatusBadGateway
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}

func serviceName(c *gin.Context) (string, bool) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return "", false
	}
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..'"})
		return "", false
	}
	return name, true
}

func (r *Router) handleDeploy(c *gin.Context) {
	name, ok := serviceName(c)
	if !ok {
		return
	}
	var req deployReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	rep, err := r.mgr.Deploy(c.Request.Context(), name, req.Message, req.SkipPublish)
	if err != nil {
		code := http.StatusBadRequest
		switch {
		case supervisor.IsConnectionError(err):
			code = http.StatusBadGateway
		case supervisor.IsLaunchError(err):
			code = http.StatusConflict
		}
		writeJSON(c, code, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, rep)
}

func (r *Router) handleRestart(c *gin.Context) {
	name, ok := serviceName(c)
	if !ok {
		return
	}
	res, err := r.mgr.Restart(c.Request.Context(), name)
	if err != nil {
		serveOpError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleStop(c *gin.Context) {
	name, ok := serviceName(c)
	if !ok {
		return
	}
	res, err := r.mgr.Stop(c.Request.Context(), name)
	if err != nil {
		serveOpError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleStatus(c *gin.Context) {
	name, ok := serviceName(c)
	if !ok {
		return
	}
	st, err := r.mgr.Status(c.Request.Context(), name)
	if err != nil {
		serveOpError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleVerify(c *gin.Context) {
	name, ok := serviceName(c)
	if !ok {
		return
	}
	res, err := r.mgr.Verify(c.Request.Context(), name)
	if err != nil {
		serveOpError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleHistory(c *gin.Context) {
	name := c.Query("name")
	if name != "" && !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..'"})
		return
	}
	limit := 50
	if ls := c.Query("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := r.mgr.History(c.Request.Context(), name, limit)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, recs)
}
