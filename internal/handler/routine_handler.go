package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/middleware"
	"github.com/campusops/routine-api/internal/models"
	"github.com/campusops/routine-api/internal/service"
	appErrors "github.com/campusops/routine-api/pkg/errors"
	"github.com/campusops/routine-api/pkg/response"
)

// RoutineHandler handles routine generation, persistence and export endpoints.
type RoutineHandler struct {
	routines *service.RoutineService
	exports  *service.ExportService
}

// NewRoutineHandler constructs a routine handler.
func NewRoutineHandler(routines *service.RoutineService, exports *service.ExportService) *RoutineHandler {
	return &RoutineHandler{routines: routines, exports: exports}
}

func (h *RoutineHandler) Generate(c *gin.Context) {
	req := dto.GenerateRoutineRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	resp, err := h.routines.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

func (h *RoutineHandler) Save(c *gin.Context) {
	var req dto.SaveRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	routine, err := h.routines.Save(c.Request.Context(), req, middleware.CurrentSubject(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, routine)
}

func (h *RoutineHandler) List(c *gin.Context) {
	var filter models.RoutineFilter
	filter.Status = strings.ToUpper(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	routines, pagination, err := h.routines.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	summaries := make([]dto.RoutineSummaryResponse, 0, len(routines))
	for _, routine := range routines {
		summaries = append(summaries, dto.RoutineSummaryResponse{
			ID:                 routine.ID,
			Version:            routine.Version,
			CatalogFingerprint: routine.CatalogFingerprint,
			Status:             string(routine.Status),
			PlacedCount:        routine.PlacedCount,
			UnplacedCount:      routine.UnplacedCount,
			BudgetExhausted:    routine.BudgetExhausted,
			CreatedAt:          routine.CreatedAt.Format(time.RFC3339),
		})
	}
	response.JSON(c, http.StatusOK, summaries, pagination)
}

func (h *RoutineHandler) Get(c *gin.Context) {
	routine, err := h.routines.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, routine, nil)
}

func (h *RoutineHandler) Rows(c *gin.Context) {
	filter := models.RoutineRowFilter{
		Semester: c.Query("semester"),
		Section:  c.Query("section"),
		Day:      c.Query("day"),
	}
	rows, err := h.routines.Rows(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

func (h *RoutineHandler) Grid(c *gin.Context) {
	grids, err := h.routines.Grid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grids, nil)
}

func (h *RoutineHandler) Export(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}

func (h *RoutineHandler) Delete(c *gin.Context) {
	if err := h.routines.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
