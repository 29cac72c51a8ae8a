package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/usage"
)

type receiptResponse struct {
	*receipt.Receipt
	Warnings []stockwise.Warning `json:"warnings"`
}

type usageResponse struct {
	*usage.Usage
	Warnings []stockwise.Warning `json:"warnings"`
}

type deleteResponse struct {
	Message  string              `json:"message"`
	Warnings []stockwise.Warning `json:"warnings"`
}

func warnings(w []stockwise.Warning) []stockwise.Warning {
	if w == nil {
		return []stockwise.Warning{}
	}
	return w
}

// recordID parses the :id parameter; a malformed id cannot name a record.
func recordID(c *gin.Context, parse func(string) (id.ID, error), missing error) (id.ID, error) {
	raw := c.Param("id")
	rid, err := parse(raw)
	if err != nil {
		return id.Nil, fmt.Errorf("%w: %s", missing, raw)
	}
	return rid, nil
}

// ──────────────────────────────────────────────────
// Order history
// ──────────────────────────────────────────────────

func (s *Server) listReceipts(c *gin.Context) {
	list, err := s.tracker.ListReceipts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createReceipt(c *gin.Context) {
	var in stockwise.ReceiptInput
	if !s.bind(c, &in) {
		return
	}
	res, err := s.tracker.CreateReceipt(c.Request.Context(), s.actor(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receiptResponse{res.Receipt, warnings(res.Warnings)})
}

func (s *Server) updateReceipt(c *gin.Context) {
	rid, err := recordID(c, id.ParseReceiptID, stockwise.ErrReceiptNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in stockwise.ReceiptInput
	if !s.bind(c, &in) {
		return
	}
	res, err := s.tracker.UpdateReceipt(c.Request.Context(), s.actor(c), rid, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receiptResponse{res.Receipt, warnings(res.Warnings)})
}

func (s *Server) deleteReceipt(c *gin.Context) {
	rid, err := recordID(c, id.ParseReceiptID, stockwise.ErrReceiptNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	w, err := s.tracker.DeleteReceipt(c.Request.Context(), rid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse{"Order history deleted successfully", warnings(w)})
}

// ──────────────────────────────────────────────────
// Use history
// ──────────────────────────────────────────────────

func (s *Server) listUsages(c *gin.Context) {
	list, err := s.tracker.ListUsages(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createUsage(c *gin.Context) {
	var in stockwise.UsageInput
	if !s.bind(c, &in) {
		return
	}
	res, err := s.tracker.CreateUsage(c.Request.Context(), s.actor(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse{res.Usage, warnings(res.Warnings)})
}

func (s *Server) updateUsage(c *gin.Context) {
	uid, err := recordID(c, id.ParseUsageID, stockwise.ErrUsageNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in stockwise.UsageInput
	if !s.bind(c, &in) {
		return
	}
	res, err := s.tracker.UpdateUsage(c.Request.Context(), s.actor(c), uid, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse{res.Usage, warnings(res.Warnings)})
}

func (s *Server) deleteUsage(c *gin.Context) {
	uid, err := recordID(c, id.ParseUsageID, stockwise.ErrUsageNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	w, err := s.tracker.DeleteUsage(c.Request.Context(), uid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse{"Use history deleted successfully", warnings(w)})
}

// ──────────────────────────────────────────────────
// Requirements
// ──────────────────────────────────────────────────

func (s *Server) listRequirements(c *gin.Context) {
	list, err := s.tracker.ListRequirements(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createRequirement(c *gin.Context) {
	var in stockwise.RequirementInput
	if !s.bind(c, &in) {
		return
	}
	r, err := s.tracker.CreateRequirement(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) updateRequirement(c *gin.Context) {
	rid, err := recordID(c, id.ParseRequirementID, stockwise.ErrRequirementNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in stockwise.RequirementInput
	if !s.bind(c, &in) {
		return
	}
	r, err := s.tracker.UpdateRequirement(c.Request.Context(), rid, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) deleteRequirement(c *gin.Context) {
	rid, err := recordID(c, id.ParseRequirementID, stockwise.ErrRequirementNotFound)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.tracker.DeleteRequirement(c.Request.Context(), rid); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Requirement deleted successfully"})
}
