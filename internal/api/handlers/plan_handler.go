// Package handlers contains the HTTP handlers of the bridge API.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"example.com/planbridge/config"
	"example.com/planbridge/internal/export"
	"example.com/planbridge/internal/importer"
	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

// Context keys under which the authentication middleware stores the
// resolved user and company.
const (
	UserContextKey    = "auth.user"
	CompanyContextKey = "auth.company"
)

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserContextKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func tokenCompany(c *gin.Context) *models.Company {
	if v, ok := c.Get(CompanyContextKey); ok {
		if co, ok := v.(*models.Company); ok {
			return co
		}
	}
	return nil
}

// PlanHandler serves the planning document and accepts the plan
// results posted back by the planner.
type PlanHandler struct {
	cfg      config.Config
	st       store.Store
	exporter *export.Exporter
	importer *importer.Importer
	log      zerolog.Logger
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(cfg config.Config, st store.Store, log zerolog.Logger) *PlanHandler {
	return &PlanHandler{
		cfg:      cfg,
		st:       st,
		exporter: export.New(st, log),
		importer: importer.New(st, log),
		log:      log.With().Str("component", "plan_handler").Logger(),
	}
}

// RegisterRoutes registers the plan endpoints behind the given
// authentication middleware.
func (h *PlanHandler) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	grp := router.Group("/planning", auth)
	grp.GET("/xml", h.Download)
	grp.POST("/xml", h.Upload)
}

// Download generates the planning document and streams it to the
// caller. The document is spooled to disk first so a failure halfway
// through generation yields a clean error instead of a truncated
// response.
func (h *PlanHandler) Download(c *gin.Context) {
	mode, err := strconv.Atoi(c.DefaultQuery("mode", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
		return
	}
	opts := export.Options{
		Company:  c.DefaultQuery("company", h.cfg.Export.Company),
		Mode:     mode,
		Timezone: c.DefaultQuery("timezone", h.cfg.Export.Timezone),
		Language: c.DefaultQuery("language", h.cfg.Export.Language),
		Version:  c.Query("version"),
		Delta:    h.cfg.Export.Delta,
	}
	if d, err := strconv.ParseFloat(c.Query("delta"), 64); err == nil {
		opts.Delta = d
	}
	if user := currentUser(c); user != nil {
		opts.User = user.Login
	}

	f, err := h.spoolFile()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	if err := h.exporter.Run(c.Request.Context(), f, opts); err != nil {
		h.fail(c, err)
		return
	}
	info, err := f.Stat()
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		h.fail(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/xml; charset=utf-8", f,
		map[string]string{
			"Cache-Control": "no-cache, no-store, must-revalidate",
			"Expires":       "0",
		})
}

// Upload applies a plan document. The document arrives either as the
// raw request body or as a multipart file named "plan". The reply is a
// plain-text summary of what was applied, including any per-element
// errors.
func (h *PlanHandler) Upload(c *gin.Context) {
	mode, err := strconv.Atoi(c.DefaultPostForm("mode", c.DefaultQuery("mode", "1")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
		return
	}
	company := h.company(c)
	if company == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown company"})
		return
	}

	var body io.Reader = c.Request.Body
	if file, err := c.FormFile("plan"); err == nil {
		src, err := file.Open()
		if err != nil {
			h.fail(c, err)
			return
		}
		defer src.Close()
		body = src
	}

	loc := time.UTC
	if user := currentUser(c); user != nil && user.Timezone != "" {
		if l, err := time.LoadLocation(user.Timezone); err == nil {
			loc = l
		}
	}

	summary, err := h.importer.Run(c.Request.Context(), body, importer.Options{
		Mode:      mode,
		CompanyID: company.ID,
		Location:  loc,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, summary)
}

// company resolves the company of the request, reusing the one the
// token middleware already loaded when possible.
func (h *PlanHandler) company(c *gin.Context) *models.Company {
	if co := tokenCompany(c); co != nil {
		return co
	}
	name := c.DefaultPostForm("company", c.DefaultQuery("company", h.cfg.Export.Company))
	co, err := h.st.CompanyByName(c.Request.Context(), name)
	if err != nil {
		return nil
	}
	return co
}

// spoolFile creates a fresh staging file, sweeping leftovers of
// earlier runs that never got cleaned up.
func (h *PlanHandler) spoolFile() (*os.File, error) {
	dir := h.cfg.Export.SpoolDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	if entries, err := os.ReadDir(dir); err == nil {
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || info.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				os.Remove(filepath.Join(dir, entry.Name()))
			}
		}
	}
	return os.CreateTemp(dir, "plan-*.xml")
}

// fail reports an internal error. The stack trace is only disclosed
// when the company opted in.
func (h *PlanHandler) fail(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	msg := err.Error()
	if co := h.company(c); co != nil && co.DiscloseStackTrace {
		msg = fmt.Sprintf("%+v", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
