package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vibecoding/internal/feedback"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/transcript"
	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
	"github.com/MrWong99/vibecoding/pkg/types"
)

type formatRequest struct {
	Text string `json:"text"`
}

type formatResponse struct {
	Text   string             `json:"text"`
	Stages []tidy.StageResult `json:"stages,omitempty"`
}

// wordJSON is the wire form of [types.WordDetail].
type wordJSON struct {
	Word       string  `json:"word"`
	StartMS    int64   `json:"start_ms,omitempty"`
	EndMS      int64   `json:"end_ms,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// cleanRequest is one transcript to clean. A JSON null or missing text is
// treated as empty.
type cleanRequest struct {
	Text       string     `json:"text"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
	Rewrite    *bool      `json:"rewrite,omitempty"`
	IsFinal    *bool      `json:"is_final,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Language   string     `json:"language,omitempty"`
	Words      []wordJSON `json:"words,omitempty"`
}

type cleanResponse struct {
	*transcript.CleanedTranscript
	Duration string `json:"duration,omitempty"`
}

type feedbackRequest struct {
	Raw      string `json:"raw"`
	Cleaned  string `json:"cleaned,omitempty"`
	Expected string `json:"expected,omitempty"`
	Method   string `json:"method,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type batchRequest struct {
	Items []cleanRequest `json:"items"`
}

type batchResponse struct {
	Results []cleanResponse `json:"results"`
}

// transcript converts the request to the pipeline's input type. Transcripts
// are final unless the caller says otherwise.
func (req cleanRequest) transcript() types.Transcript {
	t := types.Transcript{
		Text:       req.Text,
		IsFinal:    req.IsFinal == nil || *req.IsFinal,
		Confidence: req.Confidence,
		Language:   req.Language,
	}
	if req.DurationMS != nil {
		t.Duration = time.Duration(*req.DurationMS) * time.Millisecond
	}
	for _, w := range req.Words {
		t.Words = append(t.Words, types.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.StartMS) * time.Millisecond,
			End:        time.Duration(w.EndMS) * time.Millisecond,
			Confidence: w.Confidence,
		})
	}
	return t
}

func (req cleanRequest) options() []transcript.CleanOption {
	if req.Rewrite != nil && !*req.Rewrite {
		return []transcript.CleanOption{transcript.SkipRewrite()}
	}
	return nil
}

func (s *Server) clean(ctx context.Context, req cleanRequest) (cleanResponse, error) {
	res, err := s.cleaner.Clean(ctx, req.transcript(), req.options()...)
	if err != nil {
		return cleanResponse{}, err
	}
	out := cleanResponse{CleanedTranscript: res}
	if req.DurationMS != nil {
		out.Duration = transcript.FormatDuration(time.Duration(*req.DurationMS) * time.Millisecond)
	}
	return out, nil
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	resp := formatResponse{Text: tidy.Format(req.Text)}
	if trace := r.URL.Query().Get("trace"); trace == "1" || trace == "true" {
		resp.Stages = tidy.Trace(req.Text)
	}
	s.metrics.RecordFormat(r.Context(), time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.clean(r.Context(), req)
	if err != nil {
		s.writeCleanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) > maxBatchItems {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch holds %d items, limit is %d", len(req.Items), maxBatchItems))
		return
	}

	results := make([]cleanResponse, len(req.Items))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.batchLimit)
	for i, item := range req.Items {
		g.Go(func() error {
			res, err := s.clean(ctx, item)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeCleanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rec := feedback.Record{
		RequestID: observe.RequestID(r.Context()),
		Raw:       req.Raw,
		Cleaned:   req.Cleaned,
		Expected:  req.Expected,
		Method:    req.Method,
		Comment:   req.Comment,
	}
	if err := s.feedback.SaveFeedback(r.Context(), rec); err != nil {
		if errors.Is(err, feedback.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		observe.Logger(r.Context()).Error("save feedback", "err", err)
		writeError(w, http.StatusInternalServerError, "feedback could not be stored")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// writeCleanError reports a failed clean. The pipeline only fails when the
// request context ends, so the client is usually gone already.
func (s *Server) writeCleanError(w http.ResponseWriter, r *http.Request, err error) {
	observe.Logger(r.Context()).Warn("clean aborted", "err", err)
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}
