/*
Package ports defines the driven ports (interfaces) of the multipage engine.

These interfaces decouple the workflow core from the host: filesystem, network
and archive capabilities used by tasks, the settings file behind the
persistence adapter, the render host, page definition sources and session
storage.

# Key Interfaces

  - FileSystem, Downloader, Extractor: capabilities consumed by tasks and file selectors.
  - SettingsFile: flat key/string document read and written wholesale.
  - RenderHost: receives the materialized page after every transition.
  - GraphLoader: produces page definitions (JSON/YAML, Markdown, HCL, memory).
  - SessionStore: persists session snapshots ("Stop & Resume").
  - DistributedLocker: coordinates access to a session across replicas.
*/
package ports
