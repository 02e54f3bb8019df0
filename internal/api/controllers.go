package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"webhook-trader/internal/engine"
)

// postWebhook accepts a trade signal and runs it through the engine.
// Rejections come back as 4xx with the reason; a venue failure after
// all checks passed is a 502.
func (s *Server) postWebhook(c *gin.Context) {
	var sig engine.Signal
	if err := c.BindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	receipt, err := s.Engine.HandleSignal(c.Request.Context(), sig)
	if err != nil {
		var re *engine.RejectError
		if errors.As(err, &re) {
			status := http.StatusUnprocessableEntity
			if re.Stage == "validation" {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{
				"code":   "SIGNAL_REJECTED",
				"stage":  re.Stage,
				"reason": re.Reason,
			})
			return
		}
		if engine.IsExec(err) {
			c.JSON(http.StatusBadGateway, gin.H{
				"code":  "EXECUTION_FAILED",
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "accepted",
		"order":  receipt,
	})
}

func (s *Server) health(c *gin.Context) {
	st := s.Engine.Status()
	resp := gin.H{
		"status":          "ok",
		"dry_run":         s.Meta.DryRun,
		"venue":           s.Meta.Venue,
		"instance":        s.Meta.InstanceID,
		"version":         s.Meta.Version,
		"trading_enabled": st.TradingEnabled,
		"open_positions":  st.OpenPositions,
		"daily":           st.Daily,
	}
	if bal, err := s.Engine.Balance(c.Request.Context()); err == nil {
		resp["balance"] = gin.H{"free": bal.Free, "total": bal.Total}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getPositions(c *gin.Context) {
	positions := s.Engine.Positions()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

// closeAll flattens every tracked position. JWT-protected.
func (s *Server) closeAll(c *gin.Context) {
	res := s.Engine.CloseAll(c.Request.Context(), "close_all")
	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}
