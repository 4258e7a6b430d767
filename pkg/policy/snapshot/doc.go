// Package snapshot exposes gateway traffic to expressions.
//
// A policy rule sees three variables:
//
//   - request: the client request (method, path, headers, body, source address)
//   - response: the upstream response, once one exists
//   - llm: the parsed LLM exchange (provider, models, token counts, prompt)
//
// Each is a plain Go struct whose fields are exposed through `cel` struct
// tags. Values are wrapped as Dynamic, so evaluating request.headers["x-team"]
// reads one header without converting the rest of the request.
//
// Before building a snapshot, callers can ask which parts a set of compiled
// programs needs:
//
//	needs := snapshot.RequirementsOf(program.References())
//	if needs.RequestBody {
//		body, _ = io.ReadAll(r.Body)
//	}
//	req := snapshot.FromHTTPRequest(r, body)
//	v, err := program.Execute(nil, snapshot.Resolver(req, nil, nil))
package snapshot
