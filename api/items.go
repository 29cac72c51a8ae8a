package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/item"
)

type createItemRequest struct {
	stockwise.ItemInput
	Username string `json:"username"`
}

type updateItemRequest struct {
	stockwise.ItemUpdate
	Username string `json:"username"`
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

// writer prefers an explicit user name from the body.
func (s *Server) writer(c *gin.Context, username string) string {
	if username != "" {
		return username
	}
	return s.actor(c)
}

func (s *Server) listItems(c *gin.Context) {
	opts := item.ListOpts{Search: c.Query("search")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.failWith(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.failWith(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = n
	}

	items, err := s.tracker.ListItems(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) createItem(c *gin.Context) {
	var req createItemRequest
	if !s.bind(c, &req) {
		return
	}
	it, err := s.tracker.CreateItem(c.Request.Context(), s.writer(c, req.Username), req.ItemInput)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) updateItem(c *gin.Context) {
	var req updateItemRequest
	if !s.bind(c, &req) {
		return
	}
	it, err := s.tracker.UpdateItem(c.Request.Context(), s.writer(c, req.Username), c.Param("id"), req.ItemUpdate)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) adjustStock(c *gin.Context) {
	var req adjustRequest
	if !s.bind(c, &req) {
		return
	}
	it, err := s.tracker.AdjustStock(c.Request.Context(), s.actor(c), c.Param("id"), req.Delta)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.tracker.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func (s *Server) itemHistory(c *gin.Context) {
	entries, err := s.tracker.ItemHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if entries == nil {
		entries = []stockwise.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
