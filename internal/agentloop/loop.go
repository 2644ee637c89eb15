// Package agentloop implements the bounded tool-using agent loop shared by
// the retrieve and store pipelines: send system+user prompt, dispatch
// returned tool calls against a closed vocabulary, and terminate on a
// "done" call, a turn cap, a wall-clock cap, or three consecutive errors.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Turn is a single (tool_call, result, reasoning) record in the loop's
// ordered turn log.
type Turn struct {
	ToolName  string
	Args      string
	Result    string
	Reasoning string
	IsError   bool
}

// Dispatcher executes a tool call by name and returns its result text. An
// "Error: ..."-prefixed result is a tool-handler error, not a Go error; a
// non-nil error return is reserved for conditions the loop itself should
// treat as a parse/dispatch failure.
type Dispatcher func(ctx context.Context, name string, args map[string]any) (string, error)

// Budgets bounds a single loop run.
type Budgets struct {
	MaxTurns           int
	Timeout            time.Duration
	MaxConsecutiveErrs int
	MaxResultChars     int
}

// Result is the outcome of a completed loop run.
type Result struct {
	// Turns is the ordered turn log.
	Turns []Turn
	// FinalContent is whatever textual content the model produced when the
	// loop terminated without an explicit "done" tool call.
	FinalContent string
	// Done reports whether the loop terminated via the "done" tool call
	// rather than a turn/timeout/error cap.
	Done bool
}

// Run executes the bounded tool loop against chat, offering tools and
// dispatching calls through dispatch. systemPrompt and userPrompt are sent
// once at turn 0; subsequent turns append the accumulated tool-call/result
// history as assistant/tool messages.
func Run(ctx context.Context, chat llm.Provider, tools []types.ToolDefinition, dispatch Dispatcher, systemPrompt, userPrompt string, budgets Budgets) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, budgets.Timeout)
	defer cancel()

	messages := []types.Message{{Role: "user", Content: userPrompt}}
	result := &Result{}
	consecutiveErrs := 0
	nudged := false

	for turn := 0; turn < budgets.MaxTurns; turn++ {
		resp, err := chat.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Tools:        tools,
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, nil // wall-clock cap: exit with partial results
			}
			return nil, fmt.Errorf("agentloop: chat call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if turn == 0 && !nudged && len(result.Turns) == 0 {
				nudged = true
				messages = append(messages, types.Message{Role: "assistant", Content: resp.Content})
				messages = append(messages, types.Message{Role: "user", Content: nudgeMessage})
				turn--
				continue
			}
			result.FinalContent = resp.Content
			return result, nil
		}

		messages = append(messages, types.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		doneCalled := false
		for _, tc := range resp.ToolCalls {
			args, parseErr := parseArguments(tc.Arguments)
			if parseErr != nil {
				consecutiveErrs++
				t := Turn{ToolName: tc.Name, Args: tc.Arguments, Result: fmt.Sprintf("Error: invalid arguments: %v", parseErr), IsError: true}
				result.Turns = append(result.Turns, t)
				messages = append(messages, types.Message{Role: "tool", Content: t.Result, ToolCallID: tc.ID})
				if consecutiveErrs >= budgets.MaxConsecutiveErrs {
					return result, nil
				}
				continue
			}

			if tc.Name == "done" {
				doneCalled = true
				result.Done = true
				break
			}

			resultText, err := dispatch(ctx, tc.Name, args)
			if err != nil {
				return nil, fmt.Errorf("agentloop: dispatch %q: %w", tc.Name, err)
			}
			isErr := len(resultText) >= 6 && resultText[:6] == "Error:"
			if isErr {
				consecutiveErrs++
			} else {
				consecutiveErrs = 0
			}
			truncated := truncateResult(resultText, budgets.MaxResultChars)
			result.Turns = append(result.Turns, Turn{ToolName: tc.Name, Args: tc.Arguments, Result: truncated, IsError: isErr})
			messages = append(messages, types.Message{Role: "tool", Content: truncated, ToolCallID: tc.ID})

			if consecutiveErrs >= budgets.MaxConsecutiveErrs {
				return result, nil
			}
		}

		if doneCalled {
			return result, nil
		}
	}

	return result, nil
}

const nudgeMessage = "Please use one of the available tools to proceed, or call done() if nothing further is needed."

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func truncateResult(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
