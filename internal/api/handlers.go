package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"imprint/app"
	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/internal/errors"
)

// cartesianSpec builds a regular grid server-side.
type cartesianSpec struct {
	Lower []float64 `json:"lower" binding:"required"`
	Upper []float64 `json:"upper" binding:"required"`
	N     []int     `json:"n" binding:"required"`
	Nulls []string  `json:"nulls"`
}

// runRequestBody is a RunRequest whose grid is either explicit or
// cartesian.
type runRequestBody struct {
	app.RunRequest
	Cartesian *cartesianSpec `json:"cartesian,omitempty"`
}

func (b *runRequestBody) toRunRequest() (*app.RunRequest, error) {
	req := b.RunRequest
	switch {
	case req.Model == "":
		return nil, errors.InvalidInput("model is required")
	case req.Grid != nil && b.Cartesian != nil:
		return nil, errors.InvalidInput("give either grid or cartesian, not both")
	case b.Cartesian != nil:
		g, err := buildCartesian(b.Cartesian)
		if err != nil {
			return nil, err
		}
		req.Grid = g
	case req.Grid == nil:
		return nil, errors.InvalidInput("grid or cartesian is required")
	}
	return &req, nil
}

func buildCartesian(spec *cartesianSpec) (*grid.Grid, error) {
	nulls := make([]grid.NullHypothesis, 0, len(spec.Nulls))
	for _, expr := range spec.Nulls {
		h, err := grid.ParseHypothesis(expr, len(spec.Lower))
		if err != nil {
			return nil, err
		}
		nulls = append(nulls, h)
	}
	return grid.Cartesian(spec.Lower, spec.Upper, spec.N, nulls...)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleValidate(c *gin.Context) {
	req, ok := s.bindRun(c)
	if !ok {
		return
	}
	result, err := s.service.Validate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validationRunJSON(result.Manifest, result.Table, &result.Summary, result.Saved))
}

func (s *Server) handleCalibrate(c *gin.Context) {
	req, ok := s.bindRun(c)
	if !ok {
		return
	}
	result, err := s.service.Calibrate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, calibrationRunJSON(result.Manifest, result.Table, &result.Summary, result.Saved))
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	manifests, err := s.service.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": manifests, "count": len(manifests)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	stored, err := s.service.GetRun(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if stored.Validation != nil {
		c.JSON(http.StatusOK, validationRunJSON(stored.Manifest, stored.Validation, nil, true))
		return
	}
	c.JSON(http.StatusOK, calibrationRunJSON(stored.Manifest, stored.Calibration, nil, true))
}

func (s *Server) bindRun(c *gin.Context) (*app.RunRequest, bool) {
	var body runRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return nil, false
	}
	req, err := body.toRunRequest()
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return req, true
}

func (s *Server) respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidInput(key + " must be a non-negative integer")
	}
	return v, nil
}
