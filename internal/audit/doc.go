// Package audit gives every structural mutation (build, break, freeze,
// unfreeze, repair, namespace write) a unique operation id and a structured
// log line, so the "who changed what, when" trail can be reconstructed
// from the logs alone.
package audit
