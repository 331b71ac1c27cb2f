// unphpd serves the converter over HTTP: POST /v1/convert takes raw input
// plus an options map and returns the JSON rendering, the strategy that
// produced it, and any decoder diagnostics.
package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"

	"github.com/damian-dev1/unphp"
)

type convertRequest struct {
	Input   string          `json:"input"`
	Options map[string]any  `json:"options"`
	Schema  json.RawMessage `json:"schema"`
}

type convertResponse struct {
	JSON        string             `json:"json"`
	Status      unphp.Status       `json:"status"`
	Diagnostics []unphp.Diagnostic `json:"diagnostics,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Offset  *int   `json:"offset,omitempty"`
	Context string `json:"context,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	addr := os.Getenv("UNPHPD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	if os.Getenv("UNPHPD_DEBUG") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLog(logger))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": unphp.Version})
	})
	router.POST("/v1/convert", handleConvert)

	logger.Info("listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func handleConvert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	cfg := unphp.DefaultConfig()
	if req.Options != nil {
		if err := unphp.ParseOptions(req.Options, &cfg); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid options: " + err.Error()})
			return
		}
	}
	if len(req.Schema) > 0 {
		cfg.Schema = req.Schema
	}

	res, err := unphp.Convert(req.Input, cfg)
	if err != nil {
		var pe *unphp.ParseError
		switch {
		case errors.Is(err, unphp.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.As(err, &pe):
			c.JSON(http.StatusUnprocessableEntity, errorResponse{
				Error:   pe.Message,
				Offset:  unphp.Opt(pe.Offset),
				Context: pe.Context,
			})
		default:
			c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, convertResponse{
		JSON:        res.JSON,
		Status:      res.Status,
		Diagnostics: res.Diagnostics,
	})
}

// requestID echoes or mints an X-Request-ID so log lines can be correlated
// with responses.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
