package snapshot

import (
	"strings"
	"testing"

	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/cel/value"
)

func TestParseChatRequest(t *testing.T) {
	body := `{
		"model": "gpt-4o",
		"stream": true,
		"temperature": 0.2,
		"messages": [
			{"role": "system", "content": "You are helpful."},
			{"role": "user", "content": [{"type": "text", "text": "Hello there"}, {"type": "image_url", "image_url": {"url": "x"}}]}
		]
	}`

	llm, err := ParseChatRequest("openai", []byte(body))
	if err != nil {
		t.Fatalf("ParseChatRequest() error = %v", err)
	}
	if llm.Provider != "openai" || llm.RequestModel != "gpt-4o" || !llm.Streaming {
		t.Errorf("unexpected header fields: %+v", llm)
	}
	if llm.Params.Temperature == nil || *llm.Params.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", llm.Params.Temperature)
	}
	if llm.Params.MaxTokens != nil || llm.Params.TopP != nil {
		t.Errorf("unset params should stay nil: %+v", llm.Params)
	}
	if len(llm.Prompt) != 2 || llm.Prompt[1].Content != "Hello there" {
		t.Fatalf("Prompt = %+v", llm.Prompt)
	}
	if llm.InputTokens != 18 {
		t.Errorf("InputTokens = %d, want 18", llm.InputTokens)
	}
}

func TestParseChatRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "not json", body: `model=gpt-4o`, wantErr: "failed to parse chat request"},
		{name: "no model", body: `{"messages": []}`, wantErr: "no model"},
		{name: "bad content", body: `{"model": "m", "messages": [{"role": "user", "content": 42}]}`, wantErr: "message 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChatRequest("openai", []byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseChatRequest_Resolvable(t *testing.T) {
	llm, err := ParseChatRequest("openai", []byte(`{"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hi"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	p := cel.MustCompile(`llm.requestModel == "gpt-4o-mini" && !has(llm.params.temperature) && llm.prompt[0].role == "user"`)
	got, err := p.Execute(nil, &Snapshot{LLM: llm})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Bool(true)) {
		t.Errorf("Execute() = %s, want true", value.Format(got))
	}
}
