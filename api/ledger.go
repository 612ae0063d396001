package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/propadhq/vault"
	model2 "github.com/propadhq/vault/api/model"
	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

// RecordEntry appends one ledger entry. The entry type in the payload picks
// the service operation; the sufficiency checks live in the service.
func (a Api) RecordEntry(c *gin.Context) {
	var newEntry model2.RecordEntry
	if err := c.ShouldBindJSON(&newEntry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newEntry.ValidateRecordEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	input := vault.EntryInput{
		OwnerType:   model.OwnerType(newEntry.OwnerType),
		OwnerID:     newEntry.OwnerID,
		Currency:    newEntry.Currency,
		AmountCents: newEntry.AmountCents,
		SourceType:  model.SourceType(newEntry.SourceType),
		SourceID:    newEntry.SourceID,
		Description: newEntry.Description,
		MetaData:    newEntry.MetaData,
	}

	var entry *model.LedgerEntry
	var err error
	switch model.EntryType(newEntry.Type) {
	case model.EntryCredit:
		entry, err = a.vault.Credit(c.Request.Context(), input)
	case model.EntryDebit:
		entry, err = a.vault.Debit(c.Request.Context(), input)
	case model.EntryHold:
		entry, err = a.vault.Hold(c.Request.Context(), input)
	case model.EntryRelease:
		entry, err = a.vault.Release(c.Request.Context(), input)
	case model.EntryRefund:
		entry, err = a.vault.Refund(c.Request.Context(), input)
	}
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (a Api) GetLedgerEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	entry, err := a.vault.GetLedgerEntry(id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetBalance folds and returns the authoritative balance. cached=true serves
// the display snapshot instead.
func (a Api) GetBalance(c *gin.Context) {
	ownerType := c.Param("owner_type")
	ownerID := c.Param("owner_id")
	currency := c.Param("currency")

	var balance *model.Balance
	var err error
	if c.Query("cached") == "true" {
		balance, err = a.vault.GetCachedBalance(c.Request.Context(), model.OwnerType(ownerType), ownerID, currency)
	} else {
		balance, err = a.vault.GetBalance(c.Request.Context(), model.OwnerType(ownerType), ownerID, currency)
	}
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (a Api) GetStatement(c *gin.Context) {
	ownerID := c.Param("owner_id")
	currency := c.Param("currency")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := a.vault.GetStatement(c.Request.Context(), ownerID, currency, limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entries)
}
