package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/process"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the error envelope. Result carries the partial output of
// a tool that ran but did not complete.
type ErrorResponse struct {
	goerrors.ErrorResponse
	Result *process.Result `json:"result,omitempty"`
}

// Invocation is the view of an async invocation.
type Invocation struct {
	ID     string              `json:"invocation_id"`
	Action string              `json:"action,omitempty"`
	Tool   string              `json:"tool"`
	State  process.State       `json:"state"`
	Result *process.Result     `json:"result,omitempty"`
	Error  *goerrors.ErrorBody `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse{Data: data})
}

// respondError renders err with its AppError status. Unknown errors become 500.
func respondError(c *gin.Context, err error, res *process.Result) {
	appErr := goerrors.Wrap(err)
	if appErr.Code == goerrors.ErrCodeRateLimited {
		if secs, ok := appErr.Details["retry_after_seconds"].(int); ok {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{ErrorResponse: appErr.ToResponse(), Result: res})
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err, nil)
	c.Abort()
}

func invocationView(action string, p *process.Pending) Invocation {
	view := Invocation{ID: p.ID(), Action: action, Tool: p.Tool(), State: p.State()}
	res, done, err := p.Result()
	if !done {
		return view
	}
	view.Result = res
	if err != nil {
		body := goerrors.Wrap(err).ToResponse().Error
		view.Error = &body
	}
	return view
}
