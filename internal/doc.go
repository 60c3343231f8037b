// Package internal contains the implementation packages of astral.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - ast: arena-backed template tree decoded from parser output
//   - styles: scoped class hashing, style compilation and selector scoping
//   - wrapper: component framework resolution and hydration wrappers
//   - content: fetchContent recognition and glob import rewriting
//   - script: frontmatter analysis
//   - codegen: render tree and module text generation
//   - compiler: the per-file compile pipeline and the shared Session
//   - runtime: page search, collections, pagination and the node bridge
//   - build: parallel compilation, compile caches and static export
//   - server: HTTP adapter over the runtime loader
//   - scanner, watcher: source discovery and change notification
//   - config, logging, errors, validation, version: ambient support
//
// Compilation flows ast → styles/wrapper/content → codegen → compiler.
// The runtime executes compiled modules; build and server drive it.
package internal
