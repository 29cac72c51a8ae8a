package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/reconcile"
)

func (s *Server) dashboard(c *gin.Context) {
	d, err := s.tracker.Dashboard(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) integrity(c *gin.Context) {
	findings, err := s.tracker.CheckIntegrity(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if findings == nil {
		findings = []reconcile.Finding{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": len(findings) == 0, "findings": findings})
}

func (s *Server) backup(c *gin.Context) {
	s.download(c, s.tracker.Backup, backup.FileName(time.Now()))
}

// backupAndReset downloads every collection, then empties the records and
// ledgers.
func (s *Server) backupAndReset(c *gin.Context) {
	s.download(c, s.tracker.BackupAndReset, backup.DownloadName)
}

// download buffers the workbook so a failure still answers with JSON.
func (s *Server) download(c *gin.Context, run func(context.Context, io.Writer) (*stockwise.BackupReport, error), name string) {
	var buf bytes.Buffer
	if _, err := run(c.Request.Context(), &buf); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, backup.ContentType, buf.Bytes())
}
