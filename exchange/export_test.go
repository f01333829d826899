package exchange

// CachedKeySets reports how many key sets the verifier holds.
func (v *RemoteVerifier) CachedKeySets() int {
	return v.keySets.Len()
}
