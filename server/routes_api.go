// routes_api.go - Handler der HTTP-API
// Enthaelt: TokenizeHandler, EncodeHandler, ScheduleHandler, GenerateHandler

package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/imagegen/models/qwen3"
	"github.com/mneves75/z-image-go/imagegen/models/zimage"
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/logutil"
)

const maxScheduleSteps = 1000

// bind decodes the JSON body into req. An empty body leaves req unchanged.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); errors.Is(err, io.EOF) {
		return true
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) TokenizeHandler(c *gin.Context) {
	var req TokenizeRequest
	if !bind(c, &req) {
		return
	}

	prompt := req.Prompt
	if req.Template {
		prompt = qwen3.ApplyChatTemplate(prompt, false)
	}
	ids := s.cfg.Tokenizer.Encode(prompt)
	logutil.Trace(c.Request.Context(), "tokenized", "count", len(ids))

	c.JSON(http.StatusOK, TokenizeResponse{IDs: ids, Count: len(ids)})
}

func (s *Server) EncodeHandler(c *gin.Context) {
	var req EncodeRequest
	if !bind(c, &req) {
		return
	}

	if s.cfg.Encoder == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": imagegen.ErrPipelineUnavailable.Error() + ": text encoder not loaded"})
		return
	}

	start := time.Now()
	hidden, ids := s.cfg.Encoder.EncodePrompt(s.cfg.Tokenizer, req.Prompt, req.Template)
	if len(ids) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "prompt produced no tokens"})
		return
	}
	mean, std := tensor.MeanStd(hidden)
	logutil.FromContext(c.Request.Context()).Debug("encoded prompt", "tokens", len(ids), "elapsed", time.Since(start))

	resp := EncodeResponse{Shape: hidden.Shape(), Count: len(ids), Mean: mean, Std: std}
	if req.IncludeHidden {
		dim := hidden.Dim(-1)
		data := hidden.Data()
		resp.Hidden = make([][]float32, len(ids))
		for i := range resp.Hidden {
			resp.Hidden[i] = data[i*dim : (i+1)*dim]
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ScheduleHandler(c *gin.Context) {
	var req ScheduleRequest
	if !bind(c, &req) {
		return
	}

	if req.Steps <= 0 || req.Steps > maxScheduleSteps {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "steps must be between 1 and 1000"})
		return
	}
	if req.Shift < 0 || req.NumTrainTimesteps < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "shift and num_train_timesteps must not be negative"})
		return
	}

	cfg := s.cfg.Scheduler
	if req.Shift != 0 {
		cfg.Shift = req.Shift
	}
	if req.NumTrainTimesteps != 0 {
		cfg.NumTrainTimesteps = req.NumTrainTimesteps
	}

	sched := zimage.NewFlowMatchEulerScheduler(cfg, req.Steps)
	c.JSON(http.StatusOK, ScheduleResponse{Timesteps: sched.Timesteps, Sigmas: sched.Sigmas})
}

func (s *Server) GenerateHandler(c *gin.Context) {
	var req GenerateRequest
	if !bind(c, &req) {
		return
	}

	greq, err := req.generationRequest()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	dir := envconfig.ExpandHome(s.cfg.OutputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// several requests may share a second, so names carry the request id
	id := c.GetString(requestIDKey)
	if len(id) < 8 {
		id = uuid.NewString()
	}
	base := imagegen.DefaultOutputBase + "-" + id[:8]
	path := greq.Format.WithExt(filepath.Join(dir, imagegen.OutputFilename(0, time.Now(), base)))

	start := time.Now()
	res, err := s.cfg.Generator.Generate(ctx, greq, path)
	if err != nil {
		c.AbortWithStatusJSON(generateStatus(err), gin.H{"error": err.Error()})
		return
	}
	logutil.FromContext(ctx).Info("image written", "path", res.ImagePath, "seed", greq.Seed, "elapsed", time.Since(start))

	c.JSON(http.StatusOK, res)
}

func generateStatus(err error) int {
	switch {
	case errors.Is(err, imagegen.ErrInvalidDimensions):
		return http.StatusBadRequest
	case errors.Is(err, imagegen.ErrWeightsMissing),
		errors.Is(err, imagegen.ErrIntegrityMismatch),
		errors.Is(err, imagegen.ErrWeightsCorrupted),
		errors.Is(err, imagegen.ErrPipelineUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
