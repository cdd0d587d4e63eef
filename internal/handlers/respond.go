package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/models"
)

// Every response uses the `{success: bool, ...}` envelope. Errors carry
// a message; 5xx messages are generic so internals never leak.

func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, err error) {
	status := models.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		message = "something went wrong, please try again"
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": resource + " not found"})
}

// pathUUID parses a :id style parameter, answering 400 itself on
// malformed input.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
