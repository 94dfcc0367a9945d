package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/fintrack/internal/report/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
)

// Subscription reports the caller's tier, granted features and usage.
func (s *Server) Subscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	usage, err := s.entitlementSvc.Usage(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}

func (s *Server) Dashboard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	resp, err := s.reportSvc.Dashboard(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	resp, err := s.reportSvc.ExportAll(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ExportCSV renders into a buffer first so a failed export still gets a
// JSON error body.
func (s *Server) ExportCSV(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	resource := reportdomain.CSVResource(strings.TrimSpace(c.DefaultQuery("resource", string(reportdomain.CSVExpenses))))

	var buf bytes.Buffer
	if err := s.reportSvc.ExportCSV(c.Request.Context(), userID, resource, &buf); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, resource))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) ExportPDF(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	month, err := parseOptionalIntParam(c.Query("month"))
	if err != nil {
		AbortWithError(c, validation.Invalid("month", "invalid month"))
		return
	}
	year, err := parseOptionalIntParam(c.Query("year"))
	if err != nil {
		AbortWithError(c, validation.Invalid("year", "invalid year"))
		return
	}

	doc, err := s.reportSvc.Statement(c.Request.Context(), userID, month, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="statement.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
