// Package crawler assembles legislative records from the upstream API and
// drives the incremental session-by-session crawl into the archive.
package crawler
