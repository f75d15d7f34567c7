package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// handleHealth reports process liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleSignal computes the unified signal for a symbol.
// GET /api/signal?symbol=ETHUSDT&timeframes=15m,1h,4h,1d
func (s *Server) handleSignal(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "symbol is required"})
		return
	}

	var timeframes []string
	if csv := strings.TrimSpace(c.Query("timeframes")); csv != "" {
		for _, tf := range strings.Split(csv, ",") {
			if tf = strings.TrimSpace(tf); tf != "" {
				timeframes = append(timeframes, tf)
			}
		}
	}

	sig, err := s.signals.GetSignal(c.Request.Context(), symbol, timeframes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if s.store != nil {
		if err := s.store.SaveSignal(c.Request.Context(), sig); err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("signal history write failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"signal":    sig,
		"timestamp": time.Now().UTC(),
	})
}

// handleTimeframe runs a single-timeframe analysis.
// GET /api/timeframe?symbol=ETHUSDT&tf=1h
func (s *Server) handleTimeframe(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	tf := strings.TrimSpace(c.Query("tf"))
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "symbol and tf are required"})
		return
	}

	result, err := s.signals.AnalyzeTimeframe(c.Request.Context(), symbol, tf)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"analysis":  result,
		"timestamp": time.Now().UTC(),
	})
}

// handlePosition returns the latest reconciliation report for one wallet
// and index token.
// GET /api/position?wallet=0x..&token=0x..
func (s *Server) handlePosition(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("wallet"))
	token := strings.TrimSpace(c.Query("token"))
	if !common.IsHexAddress(wallet) || !common.IsHexAddress(token) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "wallet and token must be hex addresses"})
		return
	}
	if s.recon == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "reconciler disabled"})
		return
	}

	walletAddr := common.HexToAddress(wallet)
	tokenAddr := common.HexToAddress(token)
	for _, report := range s.recon.Reports() {
		if report.Key.Wallet == walletAddr && report.Key.IndexToken == tokenAddr {
			c.JSON(http.StatusOK, gin.H{"success": true, "report": report, "timestamp": time.Now().UTC()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "position not tracked"})
}

// handlePositions returns the latest report for every tracked position.
func (s *Server) handlePositions(c *gin.Context) {
	if s.recon == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "reconciler disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reports":   s.recon.Reports(),
		"timestamp": time.Now().UTC(),
	})
}

// handlePermission is a read-only trade permission probe; it never records
// a trade.
// GET /api/permission?wallet=0x..
func (s *Server) handlePermission(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("wallet"))
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "wallet is required"})
		return
	}

	decision := s.gate.CanTrade(c.Request.Context(), wallet)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"decision":  decision,
		"timestamp": time.Now().UTC(),
	})
}
