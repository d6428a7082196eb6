package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

// respondError maps façade errors onto the response envelope
func respondError(c *gin.Context, message string, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		utils.SendTimeout(c, message, err.Error())
		return
	}
	utils.SendDomainError(c, message, err)
}
