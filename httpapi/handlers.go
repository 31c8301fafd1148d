package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/tools"
	"github.com/kbukum/kalikit/version"
)

// RunRequest is the body of POST /v1/actions/:name.
type RunRequest struct {
	Params tools.Params `json:"params"`
}

func (s *Server) handleHealth(c *gin.Context) {
	sh := observability.NewServiceHealth(s.service, version.Short())
	sh.AddComponent(s.health.CheckHealth(c.Request.Context()))
	sh.AddComponent(observability.Health{
		Name:   "invocations",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"tracked":        strconv.Itoa(s.store.size()),
			"max_concurrent": strconv.Itoa(s.cfg.Admission.MaxConcurrent),
		},
	})

	status := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, sh)
}

func (s *Server) handleVersion(c *gin.Context) {
	respondOK(c, version.Get())
}

func (s *Server) handleListActions(c *gin.Context) {
	respondOK(c, s.catalog.List())
}

func (s *Server) handleGetAction(c *gin.Context) {
	a, ok := s.catalog.Get(c.Param("name"))
	if !ok {
		respondError(c, goerrors.NotFound("action", c.Param("name")), nil)
		return
	}
	respondOK(c, a)
}

func (s *Server) handleRunAction(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.catalog.Get(name); !ok {
		respondError(c, goerrors.NotFound("action", name), nil)
		return
	}

	var body RunRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, goerrors.New(goerrors.ErrCodeInvalidInput, "Request body is too large.", http.StatusRequestEntityTooLarge), nil)
			return
		}
		respondError(c, goerrors.Validation(`Request body must be {"params":{...}}.`).WithCause(err), nil)
		return
	}
	async, err := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if err != nil {
		respondError(c, goerrors.InvalidInput("async", "must be a boolean"), nil)
		return
	}

	release, err := s.bulkhead.Acquire(c.Request.Context())
	if err != nil {
		respondError(c, goerrors.ServiceUnavailable("executor").WithCause(err), nil)
		return
	}
	if async {
		s.startAction(c, name, body.Params, release)
		return
	}
	defer release()

	res, err := s.catalog.Run(c.Request.Context(), name, body.Params)
	if err != nil {
		respondError(c, err, res)
		return
	}
	respondOK(c, res)
}

// startAction runs the action detached from the request. It is tied to the
// server lifetime instead, so Stop cancels it.
func (s *Server) startAction(c *gin.Context, name string, params tools.Params, release func()) {
	ctx := logger.ContextWithRequestID(s.ctx, c.GetString(logger.FieldRequestID))
	p, err := s.catalog.Invoke(ctx, name, params)
	if err != nil {
		release()
		respondError(c, err, nil)
		return
	}
	s.store.track(ctx, name, p, release)

	c.Header("Location", "/v1/invocations/"+p.ID())
	respondAccepted(c, invocationView(name, p))
}

func (s *Server) handleGetInvocation(c *gin.Context) {
	t, err := s.store.get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respondOK(c, invocationView(t.action, t.pending))
}

func (s *Server) handleCancelInvocation(c *gin.Context) {
	t, err := s.store.get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	t.pending.Cancel()
	respondAccepted(c, invocationView(t.action, t.pending))
}

func (s *Server) handleNoRoute(c *gin.Context) {
	respondError(c, goerrors.NotFound("route", c.Request.URL.Path), nil)
}
