package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/notebins/notebins/internal/apperror"
	"github.com/notebins/notebins/internal/note"
	"github.com/notebins/notebins/internal/note/service"
)

// RegisterNoteRoutes mounts the note and library API on rg (normally the /api group).
// publicBaseURL prefixes saved note urls; when empty the request's scheme and host are used.
func RegisterNoteRoutes(rg gin.IRouter, svc *service.Service, publicBaseURL string) {
	notes := rg.Group("/notes")

	notes.POST("", func(c *gin.Context) {
		var req struct {
			Content  string `json:"content"`
			Password string `json:"password" binding:"max=72"`
		}
		if !bindOptional(c, &req) {
			return
		}
		n, err := svc.CreateNote(c.Request.Context(), req.Content, req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"success":             true,
			"id":                  n.ID,
			"content":             n.Content,
			"createdAt":           n.CreatedAt,
			"updatedAt":           n.UpdatedAt,
			"expiresAt":           n.ExpiresAt,
			"isPasswordProtected": n.IsPasswordProtected,
		})
	})

	notes.GET("/:id", func(c *gin.Context) {
		n, err := svc.GetNote(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, noteBody(n))
	})

	notes.PUT("/:id", func(c *gin.Context) {
		var req struct {
			Content *string `json:"content"`
		}
		if !bindOptional(c, &req) {
			return
		}
		if req.Content == nil {
			_ = c.Error(apperror.Invalid("Content is required", apperror.Required("content")...))
			return
		}
		if err := svc.UpdateNote(c.Request.Context(), c.Param("id"), *req.Content); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note updated successfully"})
	})

	notes.POST("/:id/verify", func(c *gin.Context) {
		var req passwordRequest
		if !bindOptional(c, &req) {
			return
		}
		n, err := svc.VerifyNote(c.Request.Context(), c.Param("id"), req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, noteBody(n))
	})

	notes.POST("/save", func(c *gin.Context) {
		var req struct {
			Title    string `json:"title"`
			NoteID   string `json:"noteId"`
			Content  string `json:"content"`
			Password string `json:"password" binding:"max=72"`
		}
		if !bindOptional(c, &req) {
			return
		}
		base := publicBaseURL
		if base == "" {
			base = requestBaseURL(c)
		}
		saved, created, err := svc.SaveNote(c.Request.Context(), service.SaveInput{
			Title:    req.Title,
			NoteID:   req.NoteID,
			Content:  req.Content,
			Password: req.Password,
			BaseURL:  base,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		if created {
			c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Note saved to library", "note": saved})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note updated in library", "note": saved})
	})

	notes.GET("/saved", func(c *gin.Context) {
		list, err := svc.ListSaved(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "notes": list})
	})

	notes.GET("/saved/:id", func(c *gin.Context) {
		s, err := svc.GetSaved(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "note": s})
	})

	notes.POST("/saved/:id/verify", func(c *gin.Context) {
		var req passwordRequest
		if !bindOptional(c, &req) {
			return
		}
		s, err := svc.VerifySaved(c.Request.Context(), c.Param("id"), req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "note": s})
	})

	notes.DELETE("/saved/:id", func(c *gin.Context) {
		var req passwordRequest
		if !bindOptional(c, &req) {
			return
		}
		if err := svc.DeleteSaved(c.Request.Context(), c.Param("id"), req.Password); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note deleted successfully"})
	})

	notes.GET("/check/:noteId", func(c *gin.Context) {
		s, err := svc.CheckSaved(c.Request.Context(), c.Param("noteId"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "note": s})
	})
}

type passwordRequest struct {
	Password string `json:"password"`
}

// bindOptional decodes a JSON body into dst; an absent body leaves dst zero.
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(err)
		return false
	}
	return true
}

func noteBody(n note.SafeNote) gin.H {
	return gin.H{
		"success":             true,
		"id":                  n.ID,
		"content":             n.Content,
		"contentLength":       n.ContentLength,
		"isPasswordProtected": n.IsPasswordProtected,
		"expiresAt":           n.ExpiresAt,
		"createdAt":           n.CreatedAt,
		"updatedAt":           n.UpdatedAt,
	}
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}
