// Gateway is the command-line front end of the Mercator expression runtime.
//
// It evaluates and inspects policy expressions, checks rule files, and runs
// the HTTP decision server a reverse proxy consults before forwarding LLM
// traffic.
//
// Usage:
//
//	# Evaluate an expression against variables from a YAML or JSON file
//	gateway expr eval 'request.headers["x-team"] in teams' --input vars.yaml
//
//	# Show what an expression reads
//	gateway expr refs 'llm.inputTokens < 500 && request.body.size() > 0'
//
//	# Check rule files
//	gateway rules check rules.yaml
//
//	# Run a rule file against a sample request
//	gateway rules eval rules.yaml --input request.yaml
//
//	# Start the decision server
//	gateway serve --config gateway.yaml
//
//	# Show version information
//	gateway version
package main

func main() {
	Execute()
}
