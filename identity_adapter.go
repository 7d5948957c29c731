package accounts

// NewIdentityFromAccount returns an Identity adapter for the provided
// account, for callers minting tokens outside the lifecycle service.
func NewIdentityFromAccount(account *Account) Identity {
	if account == nil {
		return nil
	}
	return accountIdentity{account}
}
