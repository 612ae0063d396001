package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/propadhq/vault/api/model"
	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func (a Api) RegisterSourceRecord(c *gin.Context) {
	var record model2.RegisterSourceRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := record.ValidateRegisterSourceRecord(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.vault.RegisterSourceRecord(model.SourceType(record.SourceType), record.SourceID, record.Settled); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Source record registered"})
}

// RunIntegrityChecks runs the auditor and returns the report. Violations are
// report data; the endpoint only errors when a check could not execute.
func (a Api) RunIntegrityChecks(c *gin.Context) {
	report, err := a.vault.RunIntegrityChecks(c.Request.Context())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (a Api) RecoverStuckPayouts(c *gin.Context) {
	var sweep model2.RecoverStuckPayouts
	if err := c.ShouldBindJSON(&sweep); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := a.vault.RecoverStuckPayouts(c.Request.Context(), time.Duration(sweep.ThresholdMinutes)*time.Minute)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": count})
}

func (a Api) GetAuditTrail(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	trail, err := a.vault.GetAuditTrail("payout_request", id, limit)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trail)
}
