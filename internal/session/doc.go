// Package session keeps named runtimes alive between requests so that scripts
// can build up global state. Sessions expire after an idle timeout and are
// capped in number.
package session
