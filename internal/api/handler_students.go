package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/model"
	"qr-attendance-backend/internal/parse"
)

type createStudentRequest struct {
	StudentCode string `json:"student_code" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Department  string `json:"department"`
	Program     string `json:"program"`
}

// CreateStudent handles POST /api/students. The QR payload is derived from the
// student code and never changes afterwards.
func (h *Handler) CreateStudent(c *gin.Context) {
	if _, ok := h.require(c, "register students", func(c access.Capabilities) bool { return c.CanManageEvents }); !ok {
		return
	}
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code, err := parse.NormalizeCode(req.StudentCode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := parse.QRPayload(code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student := model.Student{
		StudentCode: code,
		DisplayName: req.DisplayName,
		Department:  req.Department,
		Program:     req.Program,
		QRPayload:   payload,
	}
	if err := h.store.CreateStudent(c.Request.Context(), &student); err != nil {
		writeError(c, storageFailure("create student", err))
		return
	}
	c.JSON(http.StatusCreated, student)
}

type updateStudentRequest struct {
	Department string `json:"department"`
	Program    string `json:"program"`
}

// UpdateStudent handles PATCH /api/students/:code. Only the profile fields
// may change.
func (h *Handler) UpdateStudent(c *gin.Context) {
	if _, err := h.session(c); err != nil {
		writeError(c, err)
		return
	}
	code, err := parse.NormalizeCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.store.UpdateStudentProfile(c.Request.Context(), code, req.Department, req.Program)
	if err != nil {
		writeError(c, storageFailure("update student", err))
		return
	}
	c.JSON(http.StatusOK, student)
}
