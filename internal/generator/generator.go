// Package generator runs the two-phase model exchange that turns a user
// query into an answer, executing tool calls between the phases.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
)

// ErrGenerationFailed wraps model service failures at either phase.
var ErrGenerationFailed = errors.New("generation failed")

// systemPrompt steers the model toward tool-backed answers for
// course-specific questions and direct answers for everything else.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content.

Available tools:
- search_course_content: search inside course materials for specific lesson or topic content
- get_course_outline: return a course's title, link and complete lesson list

Tool usage:
- Use search_course_content for questions about specific course content or detailed educational materials
- Use get_course_outline for questions about a course's structure or lesson list
- At most one tool call per user query
- If a tool yields no results, state that clearly without offering alternatives

For general knowledge questions, answer from your own knowledge without tools.

Provide direct, concise and educational answers. Do not mention the tools or your search process.`

// fallbackAnswer covers a model response that carries neither text nor
// tool requests.
const fallbackAnswer = "I'm sorry, I couldn't generate a response. Please try again."

const (
	defaultRequestsPerSecond = 10
	defaultBurstSize         = 30
)

// Config carries the model parameters for a Generator.
type Config struct {
	// ModelName is the fully qualified genkit model name,
	// e.g. "googleai/gemini-2.5-flash".
	ModelName string
	// Temperature for both phases. Zero keeps answers deterministic.
	Temperature float32
	// MaxOutputTokens bounds each phase's response length.
	MaxOutputTokens int
}

// Response is the outcome of a full two-phase exchange.
type Response struct {
	Answer  string
	Sources []tools.Source
	// UsedTool reports whether phase one requested any tool call.
	UsedTool bool
}

// generateFunc is the model call seam. Tests replace it with scripted
// responses; production uses genkit.Generate.
type generateFunc func(ctx context.Context, g *genkit.Genkit, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Generator drives the exchange: one model call with tools offered, an
// optional tool-execution round, then one closing call without tools.
type Generator struct {
	g        *genkit.Genkit
	manager  *tools.Manager
	cfg      Config
	limiter  *rate.Limiter
	logger   log.Logger
	generate generateFunc
}

// New creates a Generator. The manager supplies tool refs for phase one
// and executes the requests the model makes.
func New(g *genkit.Genkit, manager *tools.Manager, cfg Config, logger log.Logger) (*Generator, error) {
	if g == nil {
		return nil, errors.New("generator: genkit instance is nil")
	}
	if manager == nil {
		return nil, errors.New("generator: tool manager is nil")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("generator: model name is empty")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{
		g:        g,
		manager:  manager,
		cfg:      cfg,
		limiter:  rate.NewLimiter(defaultRequestsPerSecond, defaultBurstSize),
		logger:   logger,
		generate: genkit.Generate,
	}, nil
}

// Generate answers query given the prior conversation turns. Tool
// sources accumulate in the manager's last-sources slot as a side
// effect of dispatch; callers read and reset that slot.
func (gen *Generator) Generate(ctx context.Context, query string, history []session.Turn) (*Response, error) {
	messages := historyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(query)))

	resp, err := gen.call(ctx,
		ai.WithModelName(gen.cfg.ModelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithConfig(gen.modelConfig()),
		ai.WithTools(gen.manager.Refs(gen.g)...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: phase one: %v", ErrGenerationFailed, err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		return &Response{Answer: answerText(resp)}, nil
	}

	messages = append(messages, resp.Message)
	toolMsg, sources, err := gen.executeTools(ctx, requests)
	if err != nil {
		return nil, err
	}
	messages = append(messages, toolMsg)

	resp, err = gen.call(ctx,
		ai.WithModelName(gen.cfg.ModelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithConfig(gen.modelConfig()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: phase two: %v", ErrGenerationFailed, err)
	}

	return &Response{Answer: answerText(resp), Sources: sources, UsedTool: true}, nil
}

// call waits for rate-limit headroom before invoking the model.
func (gen *Generator) call(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	if err := gen.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return gen.generate(ctx, gen.g, opts...)
}

// executeTools dispatches every request from the phase-one response and
// folds the outputs into a single tool-role message. The Ref is copied
// onto each response part so the model can correlate request and result.
func (gen *Generator) executeTools(ctx context.Context, requests []*ai.ToolRequest) (*ai.Message, []tools.Source, error) {
	parts := make([]*ai.Part, 0, len(requests))
	var sources []tools.Source
	for _, req := range requests {
		args, _ := req.Input.(map[string]any)
		gen.logger.Debug("dispatching tool request", "tool", req.Name)

		inv, err := gen.manager.Dispatch(ctx, req.Name, args)
		if err != nil {
			// Double-wrap so callers can still match the tool's own error
			// chain, e.g. a store outage, behind ErrGenerationFailed.
			return nil, nil, fmt.Errorf("%w: tool %s: %w", ErrGenerationFailed, req.Name, err)
		}
		sources = append(sources, inv.Sources...)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: inv.Output,
		}))
	}
	return &ai.Message{Role: ai.RoleTool, Content: parts}, sources, nil
}

func (gen *Generator) modelConfig() *genai.GenerateContentConfig {
	temp := gen.cfg.Temperature
	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(gen.cfg.MaxOutputTokens),
	}
}

// historyMessages converts stored turns into model messages.
func historyMessages(history []session.Turn) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	return messages
}

func answerText(resp *ai.ModelResponse) string {
	if text := resp.Text(); text != "" {
		return text
	}
	return fallbackAnswer
}
