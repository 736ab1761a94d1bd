package driven

// TokenSealer protects upstream tokens at rest. Seal is non-deterministic;
// Unseal either returns the exact original token or an error.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Unseal(sealed string) (string, error)
}
