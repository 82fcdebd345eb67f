package server

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/vibecoding/internal/transcript"
	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
	"github.com/MrWong99/vibecoding/pkg/types"
)

// Tool names exposed over MCP.
const (
	ToolFormat = "format_transcript"
	ToolClean  = "clean_transcript"
)

type formatToolInput struct {
	Text string `json:"text" jsonschema:"raw speech-to-text output"`
}

type formatToolOutput struct {
	Text string `json:"text" jsonschema:"the formatted text"`
}

type cleanToolInput struct {
	Text    string `json:"text" jsonschema:"raw speech-to-text output"`
	Rewrite *bool  `json:"rewrite,omitempty" jsonschema:"set to false to skip the LLM rewrite"`
}

type cleanToolOutput struct {
	Text           string                  `json:"text"`
	Method         string                  `json:"method"`
	Fallback       bool                    `json:"fallback"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
	Corrections    []transcript.Correction `json:"corrections"`
}

// NewMCPServer returns an MCP server exposing the formatter and the cleanup
// pipeline as tools. It can be served over streamable HTTP (see [WithMCP])
// or stdio.
func NewMCPServer(cleaner transcript.Cleaner, version string) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "vibecoding", Version: version}, nil)

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        ToolFormat,
		Description: "Deterministically format a dictated transcript: remove fillers and repetitions, fix capitalization and punctuation.",
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest, in formatToolInput) (*mcpsdk.CallToolResult, formatToolOutput, error) {
		out := formatToolOutput{Text: tidy.Format(in.Text)}
		return textResult(out.Text), out, nil
	})

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        ToolClean,
		Description: "Clean a dictated transcript for professional communication: snap custom vocabulary, optionally rewrite with an LLM, fall back to rule formatting.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in cleanToolInput) (*mcpsdk.CallToolResult, cleanToolOutput, error) {
		var opts []transcript.CleanOption
		if in.Rewrite != nil && !*in.Rewrite {
			opts = append(opts, transcript.SkipRewrite())
		}
		res, err := cleaner.Clean(ctx, types.Transcript{Text: in.Text, IsFinal: true}, opts...)
		if err != nil {
			return nil, cleanToolOutput{}, err
		}
		out := cleanToolOutput{
			Text:           res.Text,
			Method:         res.Method,
			Fallback:       res.Fallback,
			FallbackReason: res.FallbackReason,
			Corrections:    res.Corrections,
		}
		return textResult(out.Text), out, nil
	})

	return srv
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}
