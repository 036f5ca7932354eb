package common

// Storage keys. The names are the ones the browser build used. Store layouts
// saved by the browser build load as is; its accounts do not, since their
// "hash_" passwords never verify against argon2id digests.
const (
	AccountsKey    = "digital-mira-users"
	SessionKey     = "digital-mira-session"
	StoreLayoutKey = "digital-mira-store-layout"
	SigningKeyKey  = "digital-mira-signing-key"
)
