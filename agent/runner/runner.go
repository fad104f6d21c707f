package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
	toolx "github.com/sivanlv/pharmassist/agent/tool"
)

// DefaultMaxToolRounds bounds reasoning-engine rounds per turn. The engine
// imposes no bound of its own; without a cap a pathological model that keeps
// requesting tools would hold the turn open forever.
const DefaultMaxToolRounds = 8

type Config struct {
	MaxToolRounds int
}

// Runner drives one user turn: streams reasoning-engine rounds, executes
// requested tools sequentially, feeds results back, and finalizes with one
// assistant message.
type Runner struct {
	model        einomodel.ToolCallingChatModel
	exec         toolx.Executor
	systemPrompt string
	maxRounds    int
}

func New(
	chatModel einomodel.ToolCallingChatModel,
	infos []*schema.ToolInfo,
	exec toolx.Executor,
	systemPrompt string,
	cfg Config,
) (*Runner, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if exec == nil {
		return nil, errors.New("tool executor is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("system prompt is required")
	}

	bound, err := chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tool catalog: %v", contractx.ErrModelInvoke, err)
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}

	return &Runner{
		model:        bound,
		exec:         exec,
		systemPrompt: systemPrompt,
		maxRounds:    maxRounds,
	}, nil
}

// RunTurn executes one turn. Tool-domain failures become tool output and the
// loop continues; only transport loss, engine faults, and the round cap
// return an error (the caller emits the terminating error event).
func (r *Runner) RunTurn(ctx context.Context, history []contractx.Turn, text string, emit contractx.EmitFunc) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return contractx.ErrEmptyMessage
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(r.systemPrompt))
	for _, t := range history {
		switch t.Role {
		case contractx.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(text))

	for round := 0; round < r.maxRounds; round++ {
		full, streamed, err := r.streamRound(ctx, msgs, emit)
		if err != nil {
			return err
		}

		if len(full.ToolCalls) == 0 {
			final := strings.TrimSpace(full.Content)
			if final == "" {
				final = strings.TrimSpace(streamed)
			}
			return emit(contractx.FinalEvent(final))
		}

		// The assistant message carrying the tool calls must precede the
		// tool outputs in the next round's input, tagged with the
		// engine-issued call ids.
		msgs = append(msgs, full)
		for _, call := range full.ToolCalls {
			name := strings.TrimSpace(call.Function.Name)
			args := parseCallArgs(call.Function.Arguments)

			if err := emit(contractx.ToolCallEvent(name, args)); err != nil {
				return err
			}

			log.Debug().Str("tool", name).Int("round", round).Msg("dispatching tool")
			result := r.exec(ctx, name, args)

			if err := emit(contractx.ToolResultEvent(name, result.Result)); err != nil {
				return err
			}

			msgs = append(msgs, schema.ToolMessage(encodeResult(result.Result), call.ID))
		}
	}

	return fmt.Errorf("%w: %d rounds", contractx.ErrRoundLimit, r.maxRounds)
}

// streamRound performs one engine exchange: every content chunk is forwarded
// immediately as a token event, and all chunks are merged into the single
// authoritative round message. Deltas and the final result come from the
// same stream; mixing rounds would be a correctness bug.
func (r *Runner) streamRound(
	ctx context.Context,
	msgs []*schema.Message,
	emit contractx.EmitFunc,
) (*schema.Message, string, error) {
	reader, err := r.model.Stream(ctx, msgs)
	if err != nil {
		return nil, "", fmt.Errorf("%w: open stream: %v", contractx.ErrModelInvoke, err)
	}
	defer reader.Close()

	var chunks []*schema.Message
	var streamed strings.Builder
	for {
		chunk, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, "", fmt.Errorf("%w: recv chunk: %v", contractx.ErrModelInvoke, recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			streamed.WriteString(chunk.Content)
			if err := emit(contractx.TokenEvent(chunk.Content)); err != nil {
				return nil, "", err
			}
		}
	}

	if len(chunks) == 0 {
		return nil, "", fmt.Errorf("%w: empty round stream", contractx.ErrModelInvoke)
	}
	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, "", fmt.Errorf("%w: concat round result: %v", contractx.ErrModelInvoke, err)
	}
	return full, streamed.String(), nil
}

// parseCallArgs tolerates malformed argument payloads; the executor reports
// missing fields as BAD_ARGS data so the engine can correct itself.
func parseCallArgs(raw string) map[string]any {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func encodeResult(result any) string {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error_code":"TOOL_ERROR","message":%q}`, err.Error())
	}
	return string(payload)
}
