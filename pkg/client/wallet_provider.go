package client

// StaticWallet is a WalletProvider backed by a fixed address supplied at
// startup (flag or environment). It never emits transitions.
type StaticWallet struct {
	address string
	changes chan string
}

// NewStaticWallet returns a provider for a fixed wallet address. The
// address may be empty, in which case no identity is available.
func NewStaticWallet(address string) *StaticWallet {
	return &StaticWallet{address: address, changes: make(chan string)}
}

// Address returns the fixed wallet address.
func (w *StaticWallet) Address() string {
	return w.address
}

// Changes returns a channel that never delivers.
func (w *StaticWallet) Changes() <-chan string {
	return w.changes
}

var _ WalletProvider = (*StaticWallet)(nil)
