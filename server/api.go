package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/sse"
)

// Executor is the engine surface the API drives. *execution.Engine
// satisfies it.
type Executor interface {
	Submit(ctx context.Context, ref string, input map[string]any) (string, error)
	SubmitPipeline(ctx context.Context, p *pipeline.Pipeline, input map[string]any) (string, error)
	Validate(p *pipeline.Pipeline) error
	GetStatus(id string) (*execution.Execution, error)
	Cancel(id string) error
	List() []*execution.Execution
}

// Catalog lists published pipeline references.
type Catalog interface {
	List() []string
}

var _ Executor = (*execution.Engine)(nil)

// API serves the /v1 pipeline execution routes.
type API struct {
	exec    Executor
	catalog Catalog
	events  *sse.Hub
	log     *logger.Logger
}

// NewAPI creates the API. catalog may be nil.
func NewAPI(exec Executor, catalog Catalog) *API {
	return &API{exec: exec, catalog: catalog, log: logger.Nop()}
}

// WithEvents enables GET /v1/executions/:id/events, streaming transitions
// published to hub by an sse.Tracker.
func (a *API) WithEvents(hub *sse.Hub, log *logger.Logger) *API {
	a.events = hub
	if log != nil {
		a.log = log
	}
	return a
}

// Register mounts the API routes on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/pipelines", a.listPipelines)
	v1.POST("/pipelines/validate", a.validate)
	v1.POST("/pipelines/:id/executions", a.submitRef)
	v1.POST("/executions", a.submitInline)
	v1.GET("/executions", a.listExecutions)
	v1.GET("/executions/:id", a.getExecution)
	v1.POST("/executions/:id/cancel", a.cancel)
	if a.events != nil {
		v1.GET("/executions/:id/events", a.streamEvents)
	}
}

type submitRequest struct {
	Input map[string]any `json:"input"`
}

type inlineRequest struct {
	Pipeline *pipeline.Pipeline `json:"pipeline"`
	Input    map[string]any     `json:"input"`
}

type submitResponse struct {
	ExecutionID string `json:"execution_id"`
}

// bind decodes the JSON body into v. An empty body leaves v untouched.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if appErr, ok := apperrors.AsAppError(err); ok {
			return appErr
		}
		return apperrors.InvalidInput("body", err.Error())
	}
	return nil
}

// submitRef starts an execution of a stored pipeline. The id may carry a
// version as id@version.
func (a *API) submitRef(c *gin.Context) {
	var req submitRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	id, err := a.exec.Submit(c.Request.Context(), c.Param("id"), req.Input)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, submitResponse{ExecutionID: id})
}

func (a *API) submitInline(c *gin.Context) {
	var req inlineRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	if req.Pipeline == nil {
		RespondWithError(c, apperrors.MissingField("pipeline"))
		return
	}
	id, err := a.exec.SubmitPipeline(c.Request.Context(), req.Pipeline, req.Input)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, submitResponse{ExecutionID: id})
}

// validate runs the submission checks on an inline definition.
func (a *API) validate(c *gin.Context) {
	var req inlineRequest
	if err := bind(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	if req.Pipeline == nil {
		RespondWithError(c, apperrors.MissingField("pipeline"))
		return
	}
	if err := a.exec.Validate(req.Pipeline); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"valid": true, "pipeline": req.Pipeline.Ref()})
}

func (a *API) getExecution(c *gin.Context) {
	exec, err := a.exec.GetStatus(c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, exec)
}

func (a *API) listExecutions(c *gin.Context) {
	list := a.exec.List()
	status := c.Query("status")
	if status != "" {
		filtered := list[:0]
		for _, e := range list {
			if string(e.Status) == status {
				filtered = append(filtered, e)
			}
		}
		list = filtered
	}
	RespondOKWithMeta(c, list, &Meta{Total: len(list), Filter: status})
}

func (a *API) cancel(c *gin.Context) {
	id := c.Param("id")
	if err := a.exec.Cancel(id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, submitResponse{ExecutionID: id})
}

func (a *API) listPipelines(c *gin.Context) {
	var refs []string
	if a.catalog != nil {
		refs = a.catalog.List()
	}
	if refs == nil {
		refs = []string{}
	}
	RespondOK(c, refs)
}

// streamEvents opens an event stream for one execution. The first event is
// the current snapshot; a finished execution ends the stream right there.
func (a *API) streamEvents(c *gin.Context) {
	id := c.Param("id")
	client := sse.NewClient(sse.ExecutionClientID(id, uuid.NewString()))
	// Registered before the snapshot is taken so no transition falls between.
	a.events.Register(client)
	defer a.events.Unregister(client)

	exec, err := a.exec.GetStatus(id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	data, err := json.Marshal(exec)
	if err != nil {
		RespondWithError(c, apperrors.Internal(err))
		return
	}
	sse.Stream(c.Writer, c.Request, client, a.log, sse.Event{
		Name:  sse.EventSnapshot,
		Data:  data,
		Final: exec.Status.Terminal(),
	})
}
