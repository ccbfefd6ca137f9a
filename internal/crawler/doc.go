// Package crawler implements the depth-synchronized breadth-first crawl:
// the frontier and visited set, link and keyword extraction, and the Engine
// that dispatches one level at a time to a worker pool and hands matching
// pages to the persistence writer.
package crawler
