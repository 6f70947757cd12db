// Package cli provides the interactive pdfconv command-line client.
//
// It wires configuration, the local database, the API client, the queue
// store, the auth and history services and the job pollers into a REPL.
// Typical flow: add PDF files to the queue, pick target formats, sign in,
// run convert, and download the results once the background pollers report
// the jobs as completed.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
