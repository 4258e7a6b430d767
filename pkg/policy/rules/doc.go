// Package rules loads policy rules written as expressions and evaluates them
// against request snapshots.
//
// A rule file lists rules in evaluation order:
//
//	rules:
//	  - name: deny-unknown-teams
//	    action: deny
//	    expr: '!(request.headers["x-team"] in ["search", "ads"])'
//
//	  - name: tag-team
//	    kind: transform
//	    header: x-mercator-team
//	    expr: request.headers["x-team"]
//
//	  - name: small-prompts
//	    kind: route
//	    backend: gpt-4o-mini
//	    expr: llm.inputTokens < 500
//
// Kind defaults to authorization and an authorization rule's action defaults
// to deny. See RuleSet.Authorize for how allow and deny rules combine.
//
// Every rule is compiled once when the file is loaded. With lenient
// compilation enabled in the expression configuration, a rule whose
// expression does not parse is kept and fails each time it is evaluated;
// otherwise the whole file is rejected.
//
// A Manager keeps the active RuleSet behind an atomic pointer and, when
// watching, reloads it after the file changes:
//
//	loader, _ := rules.NewLoader(engine, &cfg.Rules, logger)
//	mgr, err := rules.NewManager(ctx, loader, &cfg.Rules)
//	if err != nil {
//		return err
//	}
//	go mgr.Watch(ctx)
//
//	decision := mgr.Current().Authorize(ctx, snap)
package rules
