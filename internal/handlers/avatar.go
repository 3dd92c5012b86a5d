package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// GetAvatar serves the user's current avatar bytes, resolved through the
// same cache-then-stores path the conversion uses.
func (h HandlerSet) GetAvatar(c *gin.Context) {
	user, err := xmpp.ParseJID(c.Param("jid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_jid"})
		return
	}

	av := h.bridge.Lookup(c.Request.Context(), user)
	if av == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_avatar"})
		return
	}

	mimeType := av.Metadata().Type
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("X-Avatar-Hash", av.Hash())
	c.Data(http.StatusOK, mimeType, av.Bytes())
}

// DeleteAvatar wipes the avatar from every mechanism.
func (h HandlerSet) DeleteAvatar(c *gin.Context) {
	user, err := xmpp.ParseJID(c.Param("jid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_jid"})
		return
	}

	h.bridge.Purge(c.Request.Context(), user)
	h.log.Info().Str("user", user.Bare()).Msg("avatar purged by admin")
	c.Status(http.StatusNoContent)
}
