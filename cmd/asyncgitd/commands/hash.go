package commands

import "github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"

// zeroHashUnlessSet parses rev as a hex hash, or returns the zero hash
// (meaning "HEAD", to whichever job interprets it that way) when rev is
// empty.
func zeroHashUnlessSet(rev string) gitlib.Hash {
	if rev == "" {
		return gitlib.ZeroHash()
	}

	return gitlib.NewHash(rev)
}
