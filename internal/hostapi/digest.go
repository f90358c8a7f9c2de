package hostapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

var digests = map[string]func([]byte) []byte{
	"sha256":      func(b []byte) []byte { s := sha256.Sum256(b); return s[:] },
	"sha3-256":    func(b []byte) []byte { s := sha3.Sum256(b); return s[:] },
	"sha3-512":    func(b []byte) []byte { s := sha3.Sum512(b); return s[:] },
	"blake2b-256": func(b []byte) []byte { s := blake2b.Sum256(b); return s[:] },
	"blake2b-512": func(b []byte) []byte { s := blake2b.Sum512(b); return s[:] },
}

// DigestAlgorithms lists the names accepted by digest().
func DigestAlgorithms() []string {
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest hashes the UTF-8 bytes of text and returns lowercase hex.
func Digest(algorithm, text string) (string, error) {
	sum, ok := digests[algorithm]
	if !ok {
		return "", fmt.Errorf("unknown algorithm %q", algorithm)
	}
	return hex.EncodeToString(sum([]byte(text))), nil
}

// InstallDigest defines digest(algorithm, text) on the global of vc.
func InstallDigest(vc *vm.Context, metrics *monitoring.Metrics) {
	fn := vc.NewFunction("digest", func(this *vm.Handle, args ...*vm.Handle) (*vm.Handle, error) {
		if len(args) < 2 || vc.Typeof(args[0]) != "string" || vc.Typeof(args[1]) != "string" {
			metrics.RecordHostCall("digest", monitoring.StatusError)
			return nil, throwError(vc, typeError("digest expects (algorithm, text) strings"))
		}

		out, err := Digest(vc.GetString(args[0]), vc.GetString(args[1]))
		if err != nil {
			metrics.RecordHostCall("digest", monitoring.StatusError)
			return nil, throwError(vc, rangeError(err.Error()))
		}
		metrics.RecordHostCall("digest", monitoring.StatusOK)
		return vc.NewString(out), nil
	})
	vc.SetProp(vc.Global(), "digest", fn)
	fn.Dispose()
}
