package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/blast"
)

// Server exposes an engine over HTTP. Routine calls are serialised so each
// run reports exactly the launches it made.
type Server struct {
	handle *backend.Handle
	engine *blast.Engine
	store  *RunStore
	log    logger.Logger
	clock  func() time.Time

	mu       sync.Mutex
	launches []Launch
}

// NewServer builds an engine over h. db must be the database h was opened
// with.
func NewServer(h *backend.Handle, db *tuning.Database, store *RunStore, log logger.Logger) (*Server, error) {
	if store == nil {
		store = NewRunStore(0)
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{handle: h, store: store, log: log, clock: time.Now}
	engine, err := blast.New(h.Queue, h.Programs,
		blast.WithTuning(db),
		blast.WithLogger(log),
		blast.WithObserver(s.observe),
	)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

func (s *Server) Engine() *blast.Engine { return s.engine }

func (s *Server) observe(ev blast.Event) {
	s.launches = append(s.launches, Launch{
		Kernel:  ev.Kernel,
		Variant: ev.Variant.String(),
		Global:  ev.Geometry.Global,
		Local:   ev.Geometry.Local,
	})
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/device", s.handleDevice)
	e.GET("/v1/routines", s.handleListRoutines)
	e.POST("/v1/routines/:name", s.handleRunRoutine)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.DELETE("/v1/runs/:id", s.handleDeleteRun)
	e.GET("/v1/tuning/:family", s.handleTuning)
}

func (s *Server) handleDevice(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Device())
}

func (s *Server) handleListRoutines(c *echo.Context) error {
	out := RoutineList{Object: "list"}
	for _, desc := range blast.Routines() {
		out.Data = append(out.Data, RoutineInfo{
			Name:       strings.ToLower(desc.Name),
			Kernels:    desc.Kernels,
			Tuning:     desc.Tuning,
			Precisions: []string{blas.Half.String(), blas.Single.String(), blas.Double.String()},
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleRunRoutine(c *echo.Context) error {
	req, err := decodeJSON[RoutineRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	run, err := s.Run(c.Param("name"), req)
	switch {
	case errors.Is(err, ErrUnknownRoutine):
		return writeNotFound(c, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case err != nil:
		s.log.Error("routine run failed", "routine", c.Param("name"), "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.store.Save(run)
	if run.Code != int(blas.Success) {
		return c.JSON(http.StatusUnprocessableEntity, run)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRun(c *echo.Context) error {
	run, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, DeleteRunResp{ID: id, Object: "run", Deleted: true})
}

func (s *Server) handleTuning(c *echo.Context) error {
	p := blas.Single
	if q := c.QueryParam("precision"); q != "" {
		parsed, err := blas.ParsePrecision(q)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		p = parsed
	}
	family := c.Param("family")
	params, ok := s.engine.Params(family, p)
	if !ok {
		return writeNotFound(c, "no parameters for "+family+" at "+p.String())
	}
	return c.JSON(http.StatusOK, TuningResponse{
		Family:    family,
		Precision: p.String(),
		Device:    s.engine.Device().Name,
		Params:    params,
	})
}
