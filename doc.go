/*
Package multipage is a guided multi-page wizard engine for installers, setup
assistants and onboarding flows.

A wizard is an ordered graph of pages. Each page shows elements bound to keys
of a per-session State Store, runs tasks (validate, download, extract, custom
functions, persist) on entry or on submit, and decides where to go next by a
fixed successor, a branch on a store value, or the page order. Required
elements and required tasks gate the Advance operation.

# Concept

The engine separates the page graph (what the wizard is) from the session
(where the user is and what they entered) and from capabilities (file system,
downloads, archives, settings). Hosts drive sessions through a Controller and
render the PageView it returns: a terminal, an HTTP client, or an MCP agent.

# Usage

	eng, err := multipage.New("./installer")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	c, err := eng.Start(ctx, "")
	if err != nil {
		log.Fatal(err)
	}

	for c.Status() == domain.StatusActive {
		view, _ := c.View()
		// render view, collect input with c.SetValue ...
		if err := c.Advance(ctx); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				continue // show verr.Failures
			}
			log.Fatal(err)
		}
	}

Graphs load from a single JSON or YAML document, from HCL files, or from a
directory of Markdown pages with frontmatter. See OpenLoader.

Sessions can be exported as a monolith (graph plus snapshot) and replayed
elsewhere with Engine.Export and Engine.Replay. Engine.Sessions returns a
session.Manager that persists snapshots through any ports.SessionStore.
*/
package multipage
