/*
Package domain contains the core models of the multipage workflow engine.

It defines the static definitions of a wizard (Pages, Elements, Tasks) and the
runtime records produced while walking them (Outcomes, Snapshots, PageViews).
The package is kept free of I/O; adapters and the runtime depend on it, never
the other way around.

# Key Entities

  - Page: One step of the workflow. Linear, Branch or Terminal.
  - Element: A typed unit of input or output on a page, optionally bound to a State Store key.
  - Task: A unit of work (validate, download, extract, custom, persist) with Sync/Async completion.
  - Outcome: Completed, Failed or Pending result of a task run.
  - Snapshot: Serializable record of a session (current page, history, values, task records).
*/
package domain
