package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// getCommitVerdictTool defines the get_commit_verdict MCP tool.
var getCommitVerdictTool = mcp.NewTool("get_commit_verdict",
	mcp.WithDescription("Get the stored classification of a commit from both oracles: the heuristic reference tool and the LLM judge."),
	mcp.WithString("commit_hash",
		mcp.Required(),
		mcp.Description("Full or abbreviated commit hash (at least 7 characters)"),
	),
)

// listDisagreementsTool defines the list_disagreements MCP tool.
var listDisagreementsTool = mcp.NewTool("list_disagreements",
	mcp.WithDescription("List commits where the reference tool and the LLM judge disagree on the pure/floss classification."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of disagreements to return (default 20)"),
	),
	mcp.WithString("reference_verdict",
		mcp.Description("Only show disagreements where the reference verdict matches"),
		mcp.Enum("pure", "floss", "unknown"),
	),
)

// agreementSummaryTool defines the agreement_summary MCP tool.
var agreementSummaryTool = mcp.NewTool("agreement_summary",
	mcp.WithDescription("Get the overall agreement rate and confusion matrix between the reference tool and the LLM judge."),
)
