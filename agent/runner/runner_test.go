package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
	toolx "github.com/sivanlv/pharmassist/agent/tool"
	"github.com/sivanlv/pharmassist/pharmacy"
	storex "github.com/sivanlv/pharmassist/store"
)

const testPrompt = "You are a pharmacy assistant."

type fakeChatModel struct {
	rounds    [][]*schema.Message
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
	streamErr error
	repeat    bool
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return nil, errors.New("generate is not used by the runner")
}

func (f *fakeChatModel) Stream(_ context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.inputs = append(f.inputs, append([]*schema.Message(nil), msgs...))
	idx := len(f.inputs) - 1
	if f.repeat {
		idx = 0
	}
	if idx >= len(f.rounds) {
		return nil, fmt.Errorf("no scripted round %d", idx)
	}
	return schema.StreamReaderFromArray(f.rounds[idx]), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func textChunk(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func toolCallChunk(id, name, args string) *schema.Message {
	idx := 0
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index:    &idx,
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

type eventRecorder struct {
	events []contractx.Event
}

func (r *eventRecorder) emit(ev contractx.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) ofType(t contractx.EventType) []contractx.Event {
	var out []contractx.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestExecutor() toolx.Executor {
	mem := storex.NewMemory(
		[]pharmacy.Medication{
			{MedicationID: "m001", NameBrand: "Advil", NameGeneric: "Ibuprofen"},
		},
		[]pharmacy.InventoryRecord{
			{StoreID: "s001", MedicationID: "m001", QuantityOnHand: 24, Reserved: 2, LastUpdatedISO: "2025-12-27T10:00:00Z"},
		},
		[]pharmacy.User{{UserID: "u001", PhoneLast4: "1234"}},
		nil,
	)
	return toolx.NewExecutor(pharmacy.NewService(mem))
}

func newTestRunner(t *testing.T, model *fakeChatModel, cfg Config) *Runner {
	t.Helper()
	r, err := New(model, toolx.Infos(), newTestExecutor(), testPrompt, cfg)
	if err != nil {
		t.Fatalf("build runner: %v", err)
	}
	return r
}

func TestRunTurnPlainTextStreamsAndFinalizes(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{rounds: [][]*schema.Message{
		{textChunk("Hel"), textChunk("lo!")},
	}}
	run := newTestRunner(t, model, Config{})
	rec := &eventRecorder{}

	err := run.RunTurn(context.Background(), nil, "hi", rec.emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokens := rec.ofType(contractx.EventToken)
	if len(tokens) != 2 || tokens[0].Text != "Hel" || tokens[1].Text != "lo!" {
		t.Fatalf("unexpected token events: %+v", tokens)
	}
	if len(rec.ofType(contractx.EventToolCall)) != 0 || len(rec.ofType(contractx.EventToolResult)) != 0 {
		t.Fatal("text-only turn must emit no tool events")
	}
	finals := rec.ofType(contractx.EventFinal)
	if len(finals) != 1 || finals[0].Text != "Hello!" {
		t.Fatalf("unexpected final events: %+v", finals)
	}
}

func TestRunTurnToolRoundThenFinal(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{rounds: [][]*schema.Message{
		{
			textChunk("Let me check."),
			toolCallChunk("call_1", toolx.ToolCheckInventory, `{"medication_id":"m001"}`),
		},
		{textChunk("22 in stock.")},
	}}
	run := newTestRunner(t, model, Config{})
	rec := &eventRecorder{}

	if err := run.RunTurn(context.Background(), nil, "is advil in stock?", rec.emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := rec.ofType(contractx.EventToolCall)
	if len(calls) != 1 || calls[0].Name != toolx.ToolCheckInventory {
		t.Fatalf("unexpected tool_call events: %+v", calls)
	}
	if calls[0].Args["medication_id"] != "m001" {
		t.Fatalf("unexpected tool args: %+v", calls[0].Args)
	}
	results := rec.ofType(contractx.EventToolResult)
	if len(results) != 1 {
		t.Fatalf("expected one tool_result, got %d", len(results))
	}
	status, ok := results[0].Result.(*pharmacy.InventoryStatus)
	if !ok {
		t.Fatalf("unexpected tool_result payload: %T", results[0].Result)
	}
	if status.QuantityAvailable != 22 {
		t.Fatalf("unexpected availability: %d", status.QuantityAvailable)
	}
	finals := rec.ofType(contractx.EventFinal)
	if len(finals) != 1 || finals[0].Text != "22 in stock." {
		t.Fatalf("unexpected final events: %+v", finals)
	}

	// second round input must carry the assistant tool-call message and the
	// tool output tagged with the engine-issued call id
	if len(model.inputs) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(model.inputs))
	}
	second := model.inputs[1]
	assistant := second[len(second)-2]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_1" {
		t.Fatalf("missing assistant tool-call record: %+v", assistant)
	}
	toolMsg := second[len(second)-1]
	if toolMsg.Role != schema.Tool || toolMsg.ToolCallID != "call_1" {
		t.Fatalf("missing tool output record: %+v", toolMsg)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(toolMsg.Content), &payload); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if payload["quantity_available"] != float64(22) {
		t.Fatalf("unexpected tool output payload: %v", payload)
	}
}

func TestRunTurnUnknownToolStillFinalizes(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{rounds: [][]*schema.Message{
		{toolCallChunk("call_9", "order_pizza", `{}`)},
		{textChunk("I cannot do that.")},
	}}
	run := newTestRunner(t, model, Config{})
	rec := &eventRecorder{}

	if err := run.RunTurn(context.Background(), nil, "pizza please", rec.emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := rec.ofType(contractx.EventToolResult)
	if len(results) != 1 {
		t.Fatalf("expected one tool_result, got %d", len(results))
	}
	fault, ok := results[0].Result.(*pharmacy.Fault)
	if !ok {
		t.Fatalf("unexpected tool_result payload: %T", results[0].Result)
	}
	if fault.Code != pharmacy.CodeUnknownTool {
		t.Fatalf("unexpected code: %s", fault.Code)
	}
	if len(rec.ofType(contractx.EventFinal)) != 1 {
		t.Fatal("turn must still reach a final event")
	}
}

func TestRunTurnEmptyMessage(t *testing.T) {
	t.Parallel()

	run := newTestRunner(t, &fakeChatModel{}, Config{})
	rec := &eventRecorder{}

	err := run.RunTurn(context.Background(), nil, "   ", rec.emit)
	if !errors.Is(err, contractx.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("no events expected, got %+v", rec.events)
	}
}

func TestRunTurnRoundCap(t *testing.T) {
	t.Parallel()

	// pathological engine requesting tools forever
	model := &fakeChatModel{
		rounds: [][]*schema.Message{
			{toolCallChunk("call_x", toolx.ToolCheckInventory, `{"medication_id":"m001"}`)},
		},
		repeat: true,
	}
	run := newTestRunner(t, model, Config{MaxToolRounds: 2})
	rec := &eventRecorder{}

	err := run.RunTurn(context.Background(), nil, "loop forever", rec.emit)
	if !errors.Is(err, contractx.ErrRoundLimit) {
		t.Fatalf("expected ErrRoundLimit, got %v", err)
	}
	if got := len(rec.ofType(contractx.EventToolCall)); got != 2 {
		t.Fatalf("expected 2 tool rounds before the cap, got %d", got)
	}
	if len(rec.ofType(contractx.EventFinal)) != 0 {
		t.Fatal("capped turn must not finalize")
	}
}

func TestRunTurnHistoryPrecedesMessage(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{rounds: [][]*schema.Message{
		{textChunk("sure")},
	}}
	run := newTestRunner(t, model, Config{})
	history := []contractx.Turn{
		{Role: contractx.RoleUser, Content: "do you have advil?"},
		{Role: contractx.RoleAssistant, Content: "Yes, 22 available."},
	}

	if err := run.RunTurn(context.Background(), history, "reserve two", (&eventRecorder{}).emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := model.inputs[0]
	if len(input) != 4 {
		t.Fatalf("expected system+history+user, got %d messages", len(input))
	}
	if input[0].Role != schema.System || input[0].Content != testPrompt {
		t.Fatalf("unexpected system message: %+v", input[0])
	}
	if input[1].Role != schema.User || input[2].Role != schema.Assistant {
		t.Fatalf("history roles not preserved: %+v", input[1:3])
	}
	if input[3].Content != "reserve two" {
		t.Fatalf("unexpected user message: %+v", input[3])
	}
}

func TestRunTurnStreamFault(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{streamErr: errors.New("upstream 500")}
	run := newTestRunner(t, model, Config{})

	err := run.RunTurn(context.Background(), nil, "hello", (&eventRecorder{}).emit)
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestRunTurnSkipsEmptyChunks(t *testing.T) {
	t.Parallel()

	// providers interleave empty delta frames; they must not surface as
	// empty token events
	model := &fakeChatModel{rounds: [][]*schema.Message{
		{{Role: schema.Assistant}, textChunk("done"), {Role: schema.Assistant}},
	}}
	run := newTestRunner(t, model, Config{})
	rec := &eventRecorder{}

	if err := run.RunTurn(context.Background(), nil, "ok", rec.emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens := rec.ofType(contractx.EventToken); len(tokens) != 1 {
		t.Fatalf("expected a single token event, got %+v", tokens)
	}
	finals := rec.ofType(contractx.EventFinal)
	if len(finals) != 1 || finals[0].Text != "done" {
		t.Fatalf("unexpected final events: %+v", finals)
	}
}
