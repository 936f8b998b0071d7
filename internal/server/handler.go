package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/config"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/pipeline"
)

// QueryHandler runs configured pipelines on request.
type QueryHandler struct {
	cfg    *config.Config
	engine *exec.Engine
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(cfg *config.Config, e *exec.Engine) *QueryHandler {
	return &QueryHandler{cfg: cfg, engine: e}
}

// HandleRun runs the pipeline named by the pipeline parameter, or by the
// request body, and writes its rows.
func (h *QueryHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("pipeline")
	if name == "" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		name = strings.TrimSpace(string(body))
	}
	if name == "" {
		http.Error(w, "no pipeline given", http.StatusBadRequest)
		return
	}
	p, ok := h.cfg.Pipeline(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown pipeline %q", name), http.StatusNotFound)
		return
	}

	format := ParseFormat(r.URL.Query().Get("format"))

	q, err := pipeline.Build(p, h.engine)
	if err != nil {
		http.Error(w, fmt.Sprintf("build error: %v", err), http.StatusBadRequest)
		return
	}
	q.PollInterval = h.cfg.PollInterval
	res, err := q.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, block.ErrOutOfMemory) {
			status = http.StatusServiceUnavailable
		}
		h.engine.Logger.Warn("[server] pipeline failed", zap.String("pipeline", name), zap.Error(err))
		http.Error(w, fmt.Sprintf("execution error: %v", err), status)
		return
	}
	defer res.Release()

	switch format {
	case FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "text/tab-separated-values")
	}
	w.Header().Set("X-Blockexec-Rows", strconv.Itoa(res.Rows))
	w.Header().Set("X-Blockexec-Filtered", strconv.FormatInt(res.Stats.Filtered, 10))
	w.Header().Set("X-Blockexec-Full-Count", strconv.FormatInt(res.Stats.FullCount, 10))
	if err := FormatBlocks(w, res.Blocks, res.Registers, format); err != nil {
		h.engine.Logger.Warn("[server] format", zap.String("pipeline", name), zap.Error(err))
	}
}

// HandlePing responds with "Ok." for health checks.
func (h *QueryHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Ok.")
}
