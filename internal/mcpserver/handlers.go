package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/compare"
)

// handleGetCommitVerdict reports both oracles' verdicts for one commit.
func (s *Server) handleGetCommitVerdict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := request.RequireString("commit_hash")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: commit_hash"), nil
	}
	hash = strings.TrimSpace(hash)
	if len(hash) < 7 {
		return mcp.NewToolResultError("commit_hash must be at least 7 characters"), nil
	}

	var b strings.Builder
	found := false
	for _, source := range []classify.Source{classify.SourceReference, classify.SourceJudge} {
		v, lookupErr := s.findByHash(ctx, hash, source)
		if lookupErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", lookupErr)), nil
		}
		if v == nil {
			fmt.Fprintf(&b, "%s: no stored verdict\n", source)
			continue
		}
		found = true
		fmt.Fprintf(&b, "%s: %s\n", source, v.Verdict)
		if v.HadConflict {
			b.WriteString("  (raw reference records disagreed; behavior-changing signal won)\n")
		}
		if len(v.SynthesizedFields) > 0 {
			fmt.Fprintf(&b, "  synthesized fields: %s\n", strings.Join(v.SynthesizedFields, ", "))
		}
		if v.Justification != "" {
			fmt.Fprintf(&b, "  justification: %s\n", v.Justification)
		}
	}

	if !found {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No verdicts stored for commit %s. Run `refjudge consolidate` and `refjudge analyze` first.", hash,
		)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// findByHash scans stored verdicts for one whose hash starts with the given
// prefix. The store keys reference rows by hash only, so a prefix scan keeps
// abbreviated hashes usable.
func (s *Server) findByHash(ctx context.Context, hash string, source classify.Source) (*classify.Classification, error) {
	verdicts, err := s.store.AllVerdicts(ctx, source)
	if err != nil {
		return nil, err
	}
	for i := range verdicts {
		if strings.HasPrefix(verdicts[i].Key.Hash, hash) {
			return &verdicts[i], nil
		}
	}
	return nil, nil
}

// handleListDisagreements lists compared commits where the oracles differ.
func (s *Server) handleListDisagreements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	refFilter := classify.Verdict(request.GetString("reference_verdict", ""))

	report, err := s.buildReport(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building report: %v", err)), nil
	}

	var b strings.Builder
	n := 0
	for _, p := range report.Disagreements() {
		if refFilter != "" && p.Reference != refFilter {
			continue
		}
		if n == limit {
			b.WriteString("(more omitted)\n")
			break
		}
		fmt.Fprintf(&b, "%s  reference=%s judge=%s", p.Hash, p.Reference, p.Judge)
		if p.RefConflict {
			b.WriteString(" [reference conflict]")
		}
		if p.JudgeSynthetic {
			b.WriteString(" [judge fields synthesized]")
		}
		b.WriteString("\n")
		n++
	}

	if n == 0 {
		return mcp.NewToolResultText("No disagreements found between the reference tool and the judge."), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleAgreementSummary returns the overall agreement statistics.
func (s *Server) handleAgreementSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.buildReport(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building report: %v", err)), nil
	}

	var b strings.Builder
	compare.RenderText(&b, report)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) buildReport(ctx context.Context) (*compare.AgreementReport, error) {
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
