// Package main hosts the radqc CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the batch workflow end to end:
// generating synthetic review sets, running the classification pipeline
// over CSV exports, and listing or re-rendering persisted runs. It
// centralizes configuration resolution and logging setup so subcommands
// can focus on translating flags into calls on the application packages.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
