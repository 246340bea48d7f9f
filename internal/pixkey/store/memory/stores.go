package memory

// Stores bundles one instance of every in-memory store.
type Stores struct {
	Keys          *KeyStore
	Claims        *ClaimStore
	History       *HistoryStore
	Verifications *VerificationStore
	Limits        *DecodeLimitStore
	Decoded       *DecodedKeyStore
	Cache         *DecodeCache
	Tx            *ShardedTx
	Locker        *Locker
}

func NewStores() *Stores {
	return &Stores{
		Keys:          NewKeyStore(),
		Claims:        NewClaimStore(),
		History:       NewHistoryStore(),
		Verifications: NewVerificationStore(),
		Limits:        NewDecodeLimitStore(),
		Decoded:       NewDecodedKeyStore(),
		Cache:         NewDecodeCache(),
		Tx:            NewTx(),
		Locker:        NewLocker(),
	}
}
