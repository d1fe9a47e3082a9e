package depgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fingerprintDomain prefixes every graph hash. The version suffix enables
// future encoding migration without colliding with old hashes.
const fingerprintDomain = "p4deps/graph/v1"

// Fingerprint returns a stable content hash of the graph. Two runs over the
// same IR snapshot and mode must produce byte-identical canonical encodings
// and therefore identical fingerprints; the run-history store keys on this
// to show when an analysis result changed.
func Fingerprint(g *Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %s\n", g.prog.Name)
	fmt.Fprintf(&b, "pipeline %s\n", g.pipeline)
	fmt.Fprintf(&b, "mode %s\n", g.mode)

	for _, ev := range g.events {
		fmt.Fprintf(&b, "event %d %s %s\n", ev.ID, ev.Kind, ev.Name)
	}

	edges := make([]*Edge, len(g.edges))
	copy(edges, g.edges)
	sort.Slice(edges, func(i, j int) bool {
		a, z := edges[i], edges[j]
		if a.Src != z.Src {
			return a.Src < z.Src
		}
		if a.Dst != z.Dst {
			return a.Dst < z.Dst
		}
		return a.Kind < z.Kind
	})
	for _, e := range edges {
		fmt.Fprintf(&b, "edge %d %d %s", e.Src, e.Dst, e.Kind)
		if !e.Fields.Empty() {
			fmt.Fprintf(&b, " [%s]", g.prog.FieldNames(e.Fields))
		}
		b.WriteString("\n")
	}

	canonical := norm.NFC.String(b.String())

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}
