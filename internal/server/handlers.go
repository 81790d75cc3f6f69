package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/compare"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// statsPayload is the body of /api/stats and the live feed.
type statsPayload struct {
	Model         string                   `json:"model"`
	Judge         map[classify.Verdict]int `json:"judge"`
	Reference     map[classify.Verdict]int `json:"reference"`
	Synthesized   int                      `json:"synthesized"`
	Failures      int                      `json:"failures"`
	AgreementRate float64                  `json:"agreement_rate"`
	Compared      int                      `json:"compared"`
}

func (s *Server) collectStats(r *http.Request) (*statsPayload, error) {
	ctx := r.Context()

	judgeCounts, err := s.store.VerdictCounts(ctx, classify.SourceJudge)
	if err != nil {
		return nil, err
	}
	refCounts, err := s.store.VerdictCounts(ctx, classify.SourceReference)
	if err != nil {
		return nil, err
	}
	synthesized, err := s.store.SynthesizedCount(ctx, classify.SourceJudge)
	if err != nil {
		return nil, err
	}
	failures, err := s.store.FailureCount(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.agreementReport(r)
	if err != nil {
		return nil, err
	}

	return &statsPayload{
		Model:         s.store.Model(),
		Judge:         judgeCounts,
		Reference:     refCounts,
		Synthesized:   synthesized,
		Failures:      failures,
		AgreementRate: report.Rate(),
		Compared:      report.Compared,
	}, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collectStats(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := classify.VerdictFilter{
		Source:     classify.Source(q.Get("source")),
		Verdict:    classify.Verdict(q.Get("verdict")),
		Repository: q.Get("repository"),
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}
	if filter.Source == "" {
		filter.Source = classify.SourceJudge
	}

	verdicts, err := s.store.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(verdicts),
		"verdicts": verdicts,
	})
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.store.Failures(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(failures),
		"failures": failures,
	})
}

func (s *Server) agreementReport(r *http.Request) (*compare.AgreementReport, error) {
	ctx := r.Context()
	reference, err := s.store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		return nil, err
	}
	judge, err := s.store.AllVerdicts(ctx, classify.SourceJudge)
	if err != nil {
		return nil, err
	}
	return compare.Compare(reference, judge), nil
}

func (s *Server) handleAgreement(w http.ResponseWriter, r *http.Request) {
	report, err := s.agreementReport(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}
