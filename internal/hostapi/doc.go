// Package hostapi installs host-provided globals into a vm.Context.
//
// Everything here goes through the public vm boundary (NewFunction, SetProp,
// Dump), so these functions double as the reference users of the function
// bridge:
//   - console.log/info/warn/error/debug: captured per evaluation and mirrored
//     to the zap logger
//   - fetchText(url): synchronous HTTP GET returning the body as a UTF-8
//     string, with retries, a rate limit, a circuit breaker and a host
//     allow-list. Other charsets are detected and decoded; binary bodies
//     throw a TypeError
//   - stats.*: numeric helpers over arrays backed by gonum
//   - digest(algorithm, text): hex SHA-256, SHA3 or BLAKE2b digests
//
// Argument errors are thrown into the script as TypeError or RangeError.
package hostapi
