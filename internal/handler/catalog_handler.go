package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/models"
	"github.com/campusops/routine-api/internal/service"
	appErrors "github.com/campusops/routine-api/pkg/errors"
	"github.com/campusops/routine-api/pkg/response"
)

// CatalogHandler handles semester, room, component and calendar endpoints.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler constructs a catalog handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

func (h *CatalogHandler) ListSemesters(c *gin.Context) {
	semesters, err := h.service.ListSemesters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}

func (h *CatalogHandler) CreateSemester(c *gin.Context) {
	var req dto.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	semester, err := h.service.CreateSemester(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

func (h *CatalogHandler) DeleteSemester(c *gin.Context) {
	removed, err := h.service.DeleteSemester(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"components_removed": removed}, nil)
}

func (h *CatalogHandler) RemoveSection(c *gin.Context) {
	updated, removed, err := h.service.RemoveSection(c.Request.Context(), c.Param("id"), c.Param("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"components_updated": updated, "components_removed": removed}, nil)
}

func (h *CatalogHandler) ListRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context(), strings.ToUpper(c.Query("kind")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

func (h *CatalogHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.service.CreateRoom(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

func (h *CatalogHandler) DeleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *CatalogHandler) ListComponents(c *gin.Context) {
	var filter models.ComponentFilter
	filter.SemesterID = c.Query("semesterId")
	filter.CourseCode = strings.TrimSpace(c.Query("courseCode"))
	filter.ClassType = strings.ToUpper(c.Query("classType"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	components, pagination, err := h.service.ListComponents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, components, pagination)
}

func (h *CatalogHandler) GetComponent(c *gin.Context) {
	component, err := h.service.GetComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

func (h *CatalogHandler) CreateComponent(c *gin.Context) {
	var req dto.CreateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.service.CreateComponent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

func (h *CatalogHandler) UpdateComponent(c *gin.Context) {
	var req dto.UpdateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.service.UpdateComponent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

func (h *CatalogHandler) DeleteComponent(c *gin.Context) {
	if err := h.service.DeleteComponent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *CatalogHandler) GetCalendar(c *gin.Context) {
	calendar, err := h.service.GetCalendar(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

func (h *CatalogHandler) UpdateCalendar(c *gin.Context) {
	var req dto.UpdateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	calendar, err := h.service.UpdateCalendar(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// ImportCatalog accepts a multipart CSV upload of class components.
func (h *CatalogHandler) ImportCatalog(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	defer file.Close()

	delim := ','
	if raw := c.Query("delimiter"); raw != "" {
		delim = rune(raw[0])
	}

	summary, err := h.service.ImportComponents(c.Request.Context(), file, delim)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
