package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/beartank/internal/bulletin"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/notify"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/submission"
)

// writeError maps a domain error to a status code. Anything without a
// sentinel is a server fault.
func writeError(c *gin.Context, err error) {
	var pw *review.PartialWriteError
	switch {
	case errors.As(err, &pw):
		log.Printf("server: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "step": pw.Step})
	case errors.Is(err, submission.ErrNotFound),
		errors.Is(err, curriculum.ErrNotFound),
		errors.Is(err, bulletin.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, submission.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, review.ErrInvalidRequest),
		errors.Is(err, submission.ErrInvalid),
		errors.Is(err, curriculum.ErrInvalid),
		errors.Is(err, bulletin.ErrInvalid),
		errors.Is(err, notify.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		writeServerError(c, err)
	}
}

// writeServerError logs err and hides it from the caller.
func writeServerError(c *gin.Context, err error) {
	log.Printf("server: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
