package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mightymop/avatarbridge/internal/engine"
)

func (h HandlerSet) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, h.flags.State())
}

// PutFlags replaces the whole flag set. Omitted fields come back false; the
// caller is expected to send the full state as returned by GetFlags.
func (h HandlerSet) PutFlags(c *gin.Context) {
	var state engine.FlagState
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_flag_state"})
		return
	}

	h.flags.Apply(state)
	h.log.Info().Interface("flags", state).Msg("runtime flags updated")
	c.JSON(http.StatusOK, h.flags.State())
}
