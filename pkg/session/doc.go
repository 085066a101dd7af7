/*
Package session hosts many conversations over one engine.

Each session gets its own flow and its own slice of the key/value store
(every key is prefixed with "<session>:"). Calls for the same session are
serialised with a reference-counted local mutex and, when configured, a
distributed lock so replicas sharing a store do not interleave.
*/
package session
