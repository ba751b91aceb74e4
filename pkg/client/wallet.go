package client

// Wallet addresses are 44-character base58 strings. Anything else is treated
// as a plain username.

const walletAddressLen = 44

// IsWalletAddress reports whether a username is actually a raw wallet
// address.
func IsWalletAddress(s string) bool {
	if len(s) != walletAddressLen {
		return false
	}
	for _, c := range s {
		if !isBase58(c) {
			return false
		}
	}
	return true
}

// FormatWalletAddress shortens a wallet address for display
// ("4k3R...fGh1"). Non-address strings pass through unchanged.
func FormatWalletAddress(s string) string {
	if !IsWalletAddress(s) {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func isBase58(c rune) bool {
	switch {
	case c >= '1' && c <= '9':
		return true
	case c >= 'A' && c <= 'H':
		return true
	case c >= 'J' && c <= 'N':
		return true
	case c >= 'P' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'k':
		return true
	case c >= 'm' && c <= 'z':
		return true
	default:
		return false
	}
}
