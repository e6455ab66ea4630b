package hrana

// Version is the negotiated Hrana wire subprotocol version (§9's
// prog-indexing Open Question). The two documented revisions share the
// same Value codec, compute machine, and execution interface but disagree
// on two surfaces: whether a bare execute request carries its own
// condition/on_ok/on_error, and how ProgResult indexes execute_results
// and execute_errors.
type Version string

const (
	// Version1 is the legacy revision: a bare "execute" request may carry
	// condition/on_ok/on_error directly, and ProgResult slots are indexed
	// by absolute step index (every step, execute or not, consumes a
	// slot).
	Version1 Version = "hrana1"

	// Version2 is the later revision: condition/on_ok/on_error only ever
	// appear inside a Prog's execute steps, and ProgResult slots are
	// indexed by the count of execute (resp. output) steps seen so far,
	// not the step's absolute position.
	Version2 Version = "hrana2"
)

// supportedVersions is offered to clients in this preference order; the
// first one also offered by the client wins.
var supportedVersions = []Version{Version2, Version1}

// Negotiate picks the highest-preference version present in offered, the
// client's Sec-WebSocket-Protocol offer list. ok is false if none match,
// in which case the caller must refuse the upgrade.
func Negotiate(offered []string) (version Version, ok bool) {
	offer := make(map[string]bool, len(offered))
	for _, o := range offered {
		offer[o] = true
	}

	for _, v := range supportedVersions {
		if offer[string(v)] {
			return v, true
		}
	}

	return "", false
}

// absoluteStepIndexing reports whether ProgResult's
// execute_results/execute_errors (and outputs) are indexed by absolute step
// index under v, rather than by the count of steps of the same kind.
func (v Version) absoluteStepIndexing() bool {
	return v == Version1
}

// allowsExecuteHooks reports whether a bare (non-Prog) execute request is
// permitted to carry condition/on_ok/on_error directly, per version.
func (v Version) allowsExecuteHooks() bool {
	return v == Version1
}
