package snapshot

import (
	"mercator-hq/gateway/pkg/cel/references"
)

// Requirements records which parts of the traffic a set of programs reads, so
// the proxy only buffers bodies and parses LLM payloads when a rule needs them.
type Requirements struct {
	Request       bool
	RequestBody   bool
	Response      bool
	ResponseBody  bool
	LLM           bool
	LLMPrompt     bool
	LLMCompletion bool
}

// RequirementsOf derives the requirements of one program from its references.
func RequirementsOf(refs references.Refs) Requirements {
	return Requirements{
		Request:       refs.HasVariable(VarRequest),
		RequestBody:   refs.HasPath("request.body"),
		Response:      refs.HasVariable(VarResponse),
		ResponseBody:  refs.HasPath("response.body"),
		LLM:           refs.HasVariable(VarLLM),
		LLMPrompt:     refs.HasPath("llm.prompt"),
		LLMCompletion: refs.HasPath("llm.completion"),
	}
}

// Merge returns the union of r and other.
func (r Requirements) Merge(other Requirements) Requirements {
	return Requirements{
		Request:       r.Request || other.Request,
		RequestBody:   r.RequestBody || other.RequestBody,
		Response:      r.Response || other.Response,
		ResponseBody:  r.ResponseBody || other.ResponseBody,
		LLM:           r.LLM || other.LLM,
		LLMPrompt:     r.LLMPrompt || other.LLMPrompt,
		LLMCompletion: r.LLMCompletion || other.LLMCompletion,
	}
}
